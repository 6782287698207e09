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

package counter

import (
	"context"
	"strconv"
	"strings"
	"time"

	"appstats/internal/applog"
	"appstats/internal/faststore"
)

// pipelineFlushSize bounds how many mutations update() accumulates before
// flushing, the Go analogue of REDIS_BUCKET_SIZE in the original counter.
const pipelineFlushSize = 10000

// lockTTL is the advisory-lock TTL every update() acquires, per spec §4.5.
const lockTTL = 5 * time.Minute

// RollingCounter maintains a decaying sum over a sliding window of Interval
// seconds, quantised into NumParts equal parts of SecsPerPart seconds, for
// every (app_id, name, field) identifier.
type RollingCounter struct {
	store  faststore.Store
	fields FieldSet
	prefix string

	Interval    int // seconds
	SecsPerPart int // seconds
	numParts    int

	idleTTL time.Duration
	now     func() time.Time
}

// NewRollingCounter builds a counter over the given window. idleTTL is the
// age after which an untouched identifier is pruned during update() (spec
// default: 10 days).
func NewRollingCounter(store faststore.Store, fields FieldSet, prefix string, intervalSeconds, secsPerPart int, idleTTL time.Duration) *RollingCounter {
	return &RollingCounter{
		store:       store,
		fields:      fields,
		prefix:      prefix,
		Interval:    intervalSeconds,
		SecsPerPart: secsPerPart,
		numParts:    intervalSeconds / secsPerPart,
		idleTTL:     idleTTL,
		now:         time.Now,
	}
}

// Fields returns the configured field set this counter tracks.
func (c *RollingCounter) Fields() []Field { return c.fields.Slice() }

// Incrby adds delta to the (app_id, name, field) accumulator and refreshes
// the active-id membership timestamps. Unknown fields are silently ignored.
func (c *RollingCounter) Incrby(ctx context.Context, appID, name string, field Field, delta float64) error {
	if strings.Contains(name, ",") {
		return ErrInvalidName
	}
	if strings.Contains(appID, ",") {
		return ErrInvalidAppID
	}
	if !c.fields.Has(field) {
		return nil
	}
	now := float64(c.now().Unix())
	if err := c.store.ZAdd(ctx, rollingAppIDsKey(c.prefix, c.Interval, c.SecsPerPart), appID, now); err != nil {
		return err
	}
	if err := c.store.ZAdd(ctx, rollingNamesKey(c.prefix, appID, c.Interval, c.SecsPerPart), name, now); err != nil {
		return err
	}
	_, err := c.store.IncrByFloat(ctx, rollingLastValKey(c.prefix, appID, name, c.Interval, c.SecsPerPart, field), delta)
	return err
}

// Update advances parts in time for every active identifier, per the shift
// algorithm in spec §4.1. It acquires the counter's advisory lock and
// returns ErrLockHeld (logged, not fatal) if another worker holds it.
func (c *RollingCounter) Update(ctx context.Context) error {
	lockKey := rollingLockKey(c.prefix, c.Interval, c.SecsPerPart)
	token, ok, err := c.store.Lock(ctx, lockKey, lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		applog.Warn("rolling counter (interval=%ds) update: lock held, skipping", c.Interval)
		return ErrLockHeld
	}
	defer c.store.Unlock(ctx, lockKey, token)

	nowTS := c.now().Unix()
	idleCutoff := float64(nowTS) - c.idleTTL.Seconds()

	appIDsKey := rollingAppIDsKey(c.prefix, c.Interval, c.SecsPerPart)
	if err := c.store.ZRemRangeByScore(ctx, appIDsKey, -1, idleCutoff); err != nil {
		return err
	}
	appIDs, err := c.store.ZScan(ctx, appIDsKey)
	if err != nil {
		return err
	}

	pipe := c.store.Pipeline()
	for _, appID := range appIDs {
		namesKey := rollingNamesKey(c.prefix, appID, c.Interval, c.SecsPerPart)
		if err := c.store.ZRemRangeByScore(ctx, namesKey, -1, idleCutoff); err != nil {
			return err
		}
		names, err := c.store.ZScan(ctx, namesKey)
		if err != nil {
			return err
		}
		for _, name := range names {
			for _, field := range c.fields.Slice() {
				if err := c.shiftOne(ctx, pipe, appID, name, field, nowTS); err != nil {
					return err
				}
				if pipe.Len() > pipelineFlushSize {
					if err := pipe.Exec(ctx); err != nil {
						return err
					}
				}
			}
		}
	}
	return pipe.Exec(ctx)
}

func (c *RollingCounter) shiftOne(ctx context.Context, pipe faststore.Pipeline, appID, name string, field Field, nowTS int64) error {
	key := rollingKey(c.prefix, appID, name, c.Interval, c.SecsPerPart, field)
	lastValKey := rollingLastValKey(c.prefix, appID, name, c.Interval, c.SecsPerPart, field)
	updatedKey := rollingUpdatedKey(c.prefix, appID, name, c.Interval, c.SecsPerPart, field)

	llen, err := c.store.LLen(ctx, key)
	if err != nil {
		return err
	}
	if llen == 0 {
		zeros := make([]string, c.numParts-1)
		for i := range zeros {
			zeros[i] = "0"
		}
		if len(zeros) > 0 {
			if err := c.store.RPush(ctx, key, zeros...); err != nil {
				return err
			}
		}
		if err := c.store.Set(ctx, updatedKey, strconv.FormatInt(nowTS, 10)); err != nil {
			return err
		}
	}

	updated, err := getInt64(ctx, c.store, updatedKey, nowTS)
	if err != nil {
		return err
	}
	lastVal, err := getFloat64(ctx, c.store, lastValKey, 0)
	if err != nil {
		return err
	}

	passed := nowTS - updated
	if passed <= int64(c.SecsPerPart) {
		return nil
	}

	newParts := passed / int64(c.SecsPerPart)
	if newParts == 0 {
		return nil
	}
	perPart := lastVal / float64(newParts)
	shifts := int64(c.numParts)
	if newParts < shifts {
		shifts = newParts
	}
	for i := int64(0); i < shifts; i++ {
		pipe.LPop(key)
		pipe.RPush(key, strconv.FormatFloat(perPart, 'f', -1, 64))
	}
	pipe.Set(lastValKey, "0")
	rest := passed - newParts*int64(c.SecsPerPart)
	pipe.Set(updatedKey, strconv.FormatInt(nowTS-rest, 10))
	return nil
}

// GetVals returns {app_id: {name: {field: sum}}} where sum = last_val +
// sum(parts), for every currently active identifier.
func (c *RollingCounter) GetVals(ctx context.Context) (map[string]map[string]map[Field]float64, error) {
	appIDsKey := rollingAppIDsKey(c.prefix, c.Interval, c.SecsPerPart)
	appIDs, err := c.store.ZScan(ctx, appIDsKey)
	if err != nil {
		return nil, err
	}
	result := make(map[string]map[string]map[Field]float64, len(appIDs))
	for _, appID := range appIDs {
		namesKey := rollingNamesKey(c.prefix, appID, c.Interval, c.SecsPerPart)
		names, err := c.store.ZScan(ctx, namesKey)
		if err != nil {
			return nil, err
		}
		byName := make(map[string]map[Field]float64, len(names))
		for _, name := range names {
			counts := make(map[Field]float64, len(c.fields))
			for _, field := range c.fields.Slice() {
				lastVal, err := getFloat64(ctx, c.store, rollingLastValKey(c.prefix, appID, name, c.Interval, c.SecsPerPart, field), 0)
				if err != nil {
					return nil, err
				}
				parts, err := c.store.LRange(ctx, rollingKey(c.prefix, appID, name, c.Interval, c.SecsPerPart, field), 0, -1)
				if err != nil {
					return nil, err
				}
				sum := lastVal
				for _, p := range parts {
					sum += parseFloatOr0(p)
				}
				counts[field] = sum
			}
			byName[name] = counts
		}
		result[appID] = byName
	}
	return result, nil
}

func getFloat64(ctx context.Context, store faststore.Store, key string, def float64) (float64, error) {
	v, ok, err := store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok || v == "" {
		return def, nil
	}
	return parseFloatOr0(v), nil
}

func getInt64(ctx context.Context, store faststore.Store, key string, def int64) (int64, error) {
	v, ok, err := store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok || v == "" {
		return def, nil
	}
	f, perr := strconv.ParseFloat(v, 64)
	if perr != nil {
		return def, nil
	}
	return int64(f), nil
}

func parseFloatOr0(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
