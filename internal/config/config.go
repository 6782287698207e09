// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the recognised options for the appstats aggregator:
// applications, tracked fields, store connections and counter topology.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NumberField is the implicit event counter every field list carries.
const NumberField = "NUMBER"

// Field describes one tracked metric column.
type Field struct {
	Key     string `yaml:"key"`
	Name    string `yaml:"name"`
	Format  string `yaml:"format"`
	Visible bool   `yaml:"visible"`
}

// TopologyEntry describes one periodic-counter resolution.
type TopologyEntry struct {
	Divider     int `yaml:"divider"`
	PeriodHours int `yaml:"period_hours"`
}

// RollingEntry describes one rolling-counter resolution.
type RollingEntry struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	SecsPerPart     int `yaml:"secs_per_part"`
}

// Config is the full set of recognised options from spec §6.
type Config struct {
	Applications map[string]string `yaml:"applications"`
	Fields       []Field           `yaml:"fields"`
	TimeFields   []Field           `yaml:"time_fields"`

	RedisHost string `yaml:"redis_host"`
	RedisPort int    `yaml:"redis_port"`
	RedisDB   int    `yaml:"redis_db"`

	MongoURI    string `yaml:"mongo_uri"`
	MongoDBName string `yaml:"mongo_db_name"`
	RedisPrefix string `yaml:"redis_prefix"`

	Periodic []TopologyEntry `yaml:"periodic"`
	Rolling  []RollingEntry  `yaml:"rolling"`

	IdleTTL time.Duration `yaml:"-"`
}

// Default returns the topology spec §2/§6 prescribes: three periodic
// resolutions (divider 60/6/1) and two rolling resolutions (1h/60s,
// 24h/1h), with a 10-day idle eviction window.
func Default() Config {
	return Config{
		Applications: map[string]string{},
		Fields:       []Field{{Key: NumberField, Name: NumberField, Visible: true}},
		RedisHost:    "127.0.0.1",
		RedisPort:    6379,
		MongoURI:     "mongodb://127.0.0.1:27017",
		MongoDBName:  "appstats",
		RedisPrefix:  "appstats",
		Periodic: []TopologyEntry{
			{Divider: 60, PeriodHours: 6},
			{Divider: 6, PeriodHours: 144},
			{Divider: 1, PeriodHours: 4368},
		},
		Rolling: []RollingEntry{
			{IntervalSeconds: 3600, SecsPerPart: 60},
			{IntervalSeconds: 86400, SecsPerPart: 3600},
		},
		IdleTTL: 10 * 24 * time.Hour,
	}
}

// Load reads a YAML config file over the defaults, ensuring NUMBER is always
// present among fields: when missing it is inserted first (mirrors the
// original app.py behavior); when listed, it keeps its configured position.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		cfg.normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	hasNumber := false
	for _, f := range c.Fields {
		if f.Key == NumberField {
			hasNumber = true
			break
		}
	}
	if !hasNumber {
		c.Fields = append([]Field{{Key: NumberField, Name: NumberField, Visible: true}}, c.Fields...)
	}
	if c.IdleTTL == 0 {
		c.IdleTTL = 10 * 24 * time.Hour
	}
}

// FieldKeys returns Fields+TimeFields key list, in configured order.
func (c Config) FieldKeys() []string {
	keys := make([]string, 0, len(c.Fields)+len(c.TimeFields))
	for _, f := range c.Fields {
		keys = append(keys, f.Key)
	}
	for _, f := range c.TimeFields {
		keys = append(keys, f.Key)
	}
	return keys
}
