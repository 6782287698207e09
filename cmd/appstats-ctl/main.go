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

// Package main provides the appstats-ctl operational CLI: one-shot
// invocations of the same rollup, cache-rebuild, retention and
// anomaly-detection logic the server otherwise runs on a schedule, for cron
// jobs and manual maintenance. Subcommands are plain flag.FlagSet values in
// the style of the teacher's single flag.Parse() main(), just dispatched by
// the first positional argument instead of all parsed together.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"appstats/internal/anomaly"
	"appstats/internal/archive"
	"appstats/internal/config"
	"appstats/internal/counter"
	"appstats/internal/faststore"
	"appstats/internal/metrics"
	"appstats/internal/view"
)

// components bundles every store-backed object a subcommand might need, so
// each subcommand only has to wire what it actually touches.
type components struct {
	store faststore.Store
	arc   archive.Store
	cfg   config.Config
	apps  statsComponents
	tasks statsComponents
}

type statsComponents struct {
	hour, day *counter.RollingCounter
	periodic  []*counter.PeriodicCounter
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "update_counters":
		err = runUpdateCounters(args)
	case "update_cache":
		err = runUpdateCache(args)
	case "strip_db":
		err = runStripDB(args)
	case "clear":
		err = runClear(args)
	case "find_anomalies":
		err = runFindAnomalies(args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "appstats-ctl %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: appstats-ctl <update_counters|update_cache|strip_db|clear|find_anomalies> [flags]")
}

func statsFlag(fs *flag.FlagSet) *string {
	return fs.String("stats", "", "Stats kind to operate on: apps or tasks")
}

func connect(configPath string) (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store := faststore.NewRedisStore(cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	arc, err := archive.Dial(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, fmt.Errorf("dial mongo: %w", err)
	}

	fields := counter.NewFieldSet(cfg.FieldKeys())
	return &components{
		store: store,
		arc:   arc,
		cfg:   cfg,
		apps:  buildStats(store, arc, fields, cfg, "apps_stats"),
		tasks: buildStats(store, arc, fields, cfg, "tasks_stats"),
	}, nil
}

func buildStats(store faststore.Store, arc archive.Store, fields counter.FieldSet, cfg config.Config, name string) statsComponents {
	prefix := cfg.RedisPrefix + ":" + name

	var rolling []*counter.RollingCounter
	for _, r := range cfg.Rolling {
		rolling = append(rolling, counter.NewRollingCounter(store, fields, prefix, r.IntervalSeconds, r.SecsPerPart, cfg.IdleTTL))
	}
	var periodic []*counter.PeriodicCounter
	for _, p := range cfg.Periodic {
		periodic = append(periodic, counter.NewPeriodicCounter(store, arc, fields, prefix, name, p.Divider, time.Duration(p.PeriodHours)*time.Hour, cfg.IdleTTL))
	}
	return statsComponents{hour: rolling[0], day: rolling[1], periodic: periodic}
}

func (s statsComponents) updaters() []interface {
	Update(ctx context.Context) error
} {
	out := []interface {
		Update(ctx context.Context) error
	}{s.hour, s.day}
	for _, pc := range s.periodic {
		out = append(out, pc)
	}
	return out
}

func pickStats(c *components, kind string) ([]statsComponents, error) {
	switch kind {
	case "apps":
		return []statsComponents{c.apps}, nil
	case "tasks":
		return []statsComponents{c.tasks}, nil
	case "":
		return []statsComponents{c.apps, c.tasks}, nil
	default:
		return nil, fmt.Errorf("unknown --stats kind %q (want apps or tasks)", kind)
	}
}

func runUpdateCounters(args []string) error {
	fs := flag.NewFlagSet("update_counters", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	stats := statsFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := connect(*configPath)
	if err != nil {
		return err
	}
	kinds, err := pickStats(c, *stats)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, k := range kinds {
		for _, u := range k.updaters() {
			if err := u.Update(ctx); err != nil && err != counter.ErrLockHeld {
				return err
			}
		}
	}
	return nil
}

func runUpdateCache(args []string) error {
	fs := flag.NewFlagSet("update_cache", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	stats := statsFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := connect(*configPath)
	if err != nil {
		return err
	}

	builders := map[string]*view.Builder{
		"apps":  view.New(c.arc, "appstats_docs", c.apps.hour, c.apps.day),
		"tasks": view.New(c.arc, "appstats_tasks_docs", c.tasks.hour, c.tasks.day),
	}
	var targets []*view.Builder
	switch *stats {
	case "apps", "tasks":
		targets = []*view.Builder{builders[*stats]}
	case "":
		targets = []*view.Builder{builders["apps"], builders["tasks"]}
	default:
		return fmt.Errorf("unknown --stats kind %q (want apps or tasks)", *stats)
	}

	ctx := context.Background()
	for _, b := range targets {
		if err := b.Rebuild(ctx); err != nil {
			return err
		}
	}
	return nil
}

func runStripDB(args []string) error {
	fs := flag.NewFlagSet("strip_db", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	stats := statsFlag(fs)
	days := fs.Int("days", 30, "Remove archive rows older than this many days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *days <= 0 {
		return fmt.Errorf("--days must be positive, got %d", *days)
	}

	c, err := connect(*configPath)
	if err != nil {
		return err
	}
	kinds, err := pickStats(c, *stats)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-time.Duration(*days) * 24 * time.Hour)
	ctx := context.Background()
	for _, k := range kinds {
		for _, pc := range k.periodic {
			if err := c.arc.Remove(ctx, pc.Collection(), archive.Doc{
				"date": archive.Doc{"$lte": cutoff},
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func runClear(args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := connect(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	collections := []string{"appstats_docs", "appstats_tasks_docs", "appstats_events"}
	for _, k := range []statsComponents{c.apps, c.tasks} {
		for _, pc := range k.periodic {
			collections = append(collections, pc.Collection())
		}
	}
	for _, coll := range collections {
		if err := c.arc.Remove(ctx, coll, archive.Doc{}); err != nil {
			return err
		}
	}
	return nil
}

func runFindAnomalies(args []string) error {
	fs := flag.NewFlagSet("find_anomalies", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	refHours := fs.Int("refhours", 24, "Reference window, hours")
	checkHours := fs.Int("checkhours", 2, "Check window, hours")
	sensitivity := fs.Float64("sensitivity", 0.6, "Sensitivity threshold in (0,1)")
	mode := fs.String("mode", "console", "Notification mode: console or email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := connect(*configPath)
	if err != nil {
		return err
	}

	var sources []anomaly.Source
	for _, k := range []statsComponents{c.apps, c.tasks} {
		for _, pc := range k.periodic {
			sources = append(sources, pc)
		}
	}

	var notifier anomaly.Notifier
	switch *mode {
	case "console":
		notifier = anomaly.ConsoleNotifier{}
	case "email":
		// No concrete anomaly.Notifier implementation sends mail; spec.md
		// §1 scopes outbound notification delivery out.
		return fmt.Errorf("--mode=email has no wired email anomaly.Notifier implementation")
	default:
		return fmt.Errorf("unknown --mode %q (want console or email)", *mode)
	}

	d := anomaly.New(sources, notifier, metrics.AnomaliesTotal)
	_, err = d.Run(context.Background(), *refHours, *checkHours, *sensitivity)
	return err
}
