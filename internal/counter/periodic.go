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
	"fmt"
	"strconv"
	"strings"
	"time"

	"appstats/internal/applog"
	"appstats/internal/archive"
	"appstats/internal/faststore"
)

// maxPassedIntervals caps how many dated documents per (app_id, name)
// update() writes when it has fallen far behind (e.g. the process was down):
// the current one plus at most maxPassedIntervals-1 backfills, so a long
// outage doesn't produce thousands of near-duplicate rows.
const maxPassedIntervals = 5

// PeriodicCounter accumulates values in Redis during strict wall-clock
// aligned intervals (hour / divider minutes wide) and rolls them into
// dated documents in the archive once an interval boundary is crossed.
type PeriodicCounter struct {
	store      faststore.Store
	archive    archive.Store
	fields     FieldSet
	prefix     string
	collection string

	Divider  int           // 1 <= divider <= 60; interval = 60/divider minutes
	interval int           // minutes
	Period   time.Duration // how long rolled-up docs are retained

	idleTTL time.Duration
	now     func() time.Time
}

// NewPeriodicCounter builds a counter rolling up into the archive collection
// "appstats_<statsKind>_periodic-<divider>", matching the original naming
// scheme so existing dashboards keep working against renamed collections.
func NewPeriodicCounter(store faststore.Store, arc archive.Store, fields FieldSet, prefix, statsKind string, divider int, period, idleTTL time.Duration) *PeriodicCounter {
	return &PeriodicCounter{
		store:      store,
		archive:    arc,
		fields:     fields,
		prefix:     prefix,
		collection: fmt.Sprintf("appstats_%s_periodic-%d", statsKind, divider),
		Divider:    divider,
		interval:   60 / divider,
		Period:     period,
		idleTTL:    idleTTL,
		now:        time.Now,
	}
}

// Collection returns the archive collection this counter rolls up into.
func (c *PeriodicCounter) Collection() string { return c.collection }

// Incrby adds delta to the (app_id, name, field) accumulator for the
// interval currently in progress.
func (c *PeriodicCounter) Incrby(ctx context.Context, appID, name string, field Field, delta float64) error {
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
	if err := c.store.ZAdd(ctx, periodicAppIDsKey(c.prefix, c.Divider), appID, now); err != nil {
		return err
	}
	if err := c.store.ZAdd(ctx, periodicNamesKey(c.prefix, c.Divider, appID), name, now); err != nil {
		return err
	}
	_, err := c.store.IncrByFloat(ctx, periodicKey(c.prefix, c.Divider, appID, name, field), delta)
	return err
}

// Update rolls any fully-elapsed intervals into the archive. It is a no-op
// if less than one interval has passed since the last successful update, or
// if another worker holds the counter's advisory lock.
func (c *PeriodicCounter) Update(ctx context.Context) error {
	lockKey := periodicLockKey(c.prefix, c.Divider)
	token, ok, err := c.store.Lock(ctx, lockKey, lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		applog.Warn("periodic counter (collection=%s) update: lock held, skipping", c.collection)
		return ErrLockHeld
	}
	defer c.store.Unlock(ctx, lockKey, token)

	prevUpdKey := periodicPrevUpdKey(c.prefix, c.Divider)
	rawPrev, hasPrev, err := c.store.Get(ctx, prevUpdKey)
	if err != nil {
		return err
	}

	now := c.now().UTC()
	alignedMinute := (now.Minute() / c.interval) * c.interval
	now = time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), alignedMinute, 0, 0, time.UTC)

	var prevUpd time.Time
	if hasPrev && rawPrev != "" {
		sec, perr := strconv.ParseInt(rawPrev, 10, 64)
		if perr != nil {
			return perr
		}
		prevUpd = time.Unix(sec, 0).UTC()
	} else {
		prevUpd = now.Add(-time.Duration(c.interval) * time.Minute)
	}

	passedIntervals := int(now.Sub(prevUpd).Minutes()) / c.interval
	if passedIntervals <= 0 {
		return nil
	}
	numIntervals := passedIntervals
	if numIntervals > maxPassedIntervals {
		numIntervals = maxPassedIntervals
	}

	idleCutoff := float64(now.Unix()) - c.idleTTL.Seconds()
	appIDsKey := periodicAppIDsKey(c.prefix, c.Divider)
	if err := c.store.ZRemRangeByScore(ctx, appIDsKey, -1, idleCutoff); err != nil {
		return err
	}
	appIDs, err := c.store.ZScan(ctx, appIDsKey)
	if err != nil {
		return err
	}

	pipe := c.store.Pipeline()
	var docs []archive.Doc
	for _, appID := range appIDs {
		namesKey := periodicNamesKey(c.prefix, c.Divider, appID)
		if err := c.store.ZRemRangeByScore(ctx, namesKey, -1, idleCutoff); err != nil {
			return err
		}
		names, err := c.store.ZScan(ctx, namesKey)
		if err != nil {
			return err
		}
		for _, name := range names {
			doc := archive.Doc{"name": name, "app_id": appID, "date": now}
			for _, field := range c.fields.Slice() {
				key := periodicKey(c.prefix, c.Divider, appID, name, field)
				val, err := getFloat64(ctx, c.store, key, 0)
				if err != nil {
					return err
				}
				pipe.IncrByFloat(key, -val)
				doc[string(field)] = val / float64(passedIntervals)
			}
			docs = append(docs, doc)
		}
	}

	// Try the insert up to 3 times, 100ms apart. If every attempt fails the
	// pipelined decrements are never executed, so the accumulators keep
	// their values for the next update.
	var insertErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if insertErr = c.archive.Insert(ctx, c.collection, docs); insertErr == nil {
			break
		}
		applog.Warn("periodic counter (collection=%s) update: archive insert attempt %d failed: %v", c.collection, attempt, insertErr)
		if attempt < 3 {
			time.Sleep(100 * time.Millisecond)
		}
	}
	if insertErr != nil {
		return insertErr
	}
	if err := pipe.Exec(ctx); err != nil {
		return err
	}
	if err := c.store.Set(ctx, prevUpdKey, strconv.FormatInt(now.Unix(), 10)); err != nil {
		return err
	}

	oldestDate := now.Add(-c.Period)
	if err := c.archive.Remove(ctx, c.collection, archive.Doc{"date": archive.Doc{"$lte": oldestDate}}); err != nil {
		return err
	}

	// Backfill documents for intervals skipped over, each at its own
	// historical date, so a missed tick doesn't create a gap in the series.
	for offsetScale := 1; offsetScale < numIntervals; offsetScale++ {
		date := now.Add(-time.Duration(c.interval*offsetScale) * time.Minute)
		backfill := make([]archive.Doc, len(docs))
		for i, d := range docs {
			clone := make(archive.Doc, len(d))
			for k, v := range d {
				clone[k] = v
			}
			clone["date"] = date
			backfill[i] = clone
		}
		if err := c.archive.Insert(ctx, c.collection, backfill); err != nil {
			return err
		}
	}
	return nil
}

// FindAnomalies compares the per-(app_id, name, field) average over a
// reference window against a more recent check window and flags any
// identifier whose relative change meets or exceeds 1-sensitivity.
func (c *PeriodicCounter) FindAnomalies(ctx context.Context, refHours, checkHours int, sensitivity float64) ([]Anomaly, error) {
	now := c.now().UTC()
	checkEnd := now
	checkStart := now.Add(-time.Duration(checkHours) * time.Hour)
	refEnd := checkStart
	refStart := refEnd.Add(-time.Duration(refHours) * time.Hour)

	fieldNames := make([]string, 0, len(c.fields))
	for _, f := range c.fields.Slice() {
		fieldNames = append(fieldNames, string(f))
	}
	groupBy := []string{"app_id", "name"}

	refResults, err := c.archive.AggregateAvg(ctx, c.collection,
		archive.Doc{"date": archive.Doc{"$gt": refStart, "$lt": refEnd}}, groupBy, fieldNames)
	if err != nil {
		return nil, err
	}
	checkResults, err := c.archive.AggregateAvg(ctx, c.collection,
		archive.Doc{"date": archive.Doc{"$gt": checkStart, "$lt": checkEnd}}, groupBy, fieldNames)
	if err != nil {
		return nil, err
	}

	checkByKey := make(map[string]map[string]float64, len(checkResults))
	for _, r := range checkResults {
		checkByKey[r.GroupKey["app_id"]+"\x00"+r.GroupKey["name"]] = r.Averages
	}

	var anomalies []Anomaly
	for _, r := range refResults {
		key := r.GroupKey["app_id"] + "\x00" + r.GroupKey["name"]
		checkAvgs := checkByKey[key]
		for _, field := range fieldNames {
			refVal, ok := r.Averages[field]
			if !ok || refVal == 0 {
				continue
			}
			checkVal := checkAvgs[field]
			errRatio := (refVal - checkVal) / refVal
			if errRatio < 0 {
				errRatio = -errRatio
			}
			if errRatio >= 1.0-sensitivity {
				anomalies = append(anomalies, Anomaly{
					AppID: r.GroupKey["app_id"],
					Name:  r.GroupKey["name"],
					Field: Field(field),
				})
			}
		}
	}
	return anomalies, nil
}
