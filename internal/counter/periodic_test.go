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
	"testing"
	"time"

	"appstats/internal/archive"
	"appstats/internal/faststore"
)

func newTestPeriodic(store faststore.Store, arc archive.Store, divider int, start time.Time) *PeriodicCounter {
	fields := NewFieldSet(nil)
	pc := NewPeriodicCounter(store, arc, fields, "test_apps", "apps", divider, 720*time.Hour, 10*24*time.Hour)
	pc.now = func() time.Time { return start }
	return pc
}

func TestPeriodicCounterIncrbyRejectsComma(t *testing.T) {
	pc := newTestPeriodic(faststore.NewFake(), archive.NewFake(), 1, time.Now())
	ctx := context.Background()

	if err := pc.Incrby(ctx, "a,b", "name", NumberField, 1); err != ErrInvalidAppID {
		t.Fatalf("got %v, want ErrInvalidAppID", err)
	}
	if err := pc.Incrby(ctx, "app", "na,me", NumberField, 1); err != ErrInvalidName {
		t.Fatalf("got %v, want ErrInvalidName", err)
	}
}

func TestPeriodicCounterUpdateTooEarlyIsNoOp(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store := faststore.NewFake()
	arc := archive.NewFake()
	pc := newTestPeriodic(store, arc, 1, start)
	ctx := context.Background()

	if err := pc.Incrby(ctx, "app1", "req", NumberField, 10); err != nil {
		t.Fatal(err)
	}
	// divider=1 => interval=60min; with no prev_upd, "one interval before
	// now" is used as the baseline, so the very first update should fire.
	if err := pc.Update(ctx); err != nil {
		t.Fatal(err)
	}
	docs, err := arc.Find(ctx, pc.Collection(), archive.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected one rolled-up doc, got %d", len(docs))
	}

	// Immediately updating again, with the clock unchanged, must be a no-op.
	if err := pc.Update(ctx); err != nil {
		t.Fatal(err)
	}
	docs, err = arc.Find(ctx, pc.Collection(), archive.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected update to be a no-op before an interval elapses, got %d docs", len(docs))
	}
}

func TestPeriodicCounterUpdateRollsUpAndResetsAccumulator(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store := faststore.NewFake()
	arc := archive.NewFake()
	pc := newTestPeriodic(store, arc, 1, start)
	ctx := context.Background()

	if err := pc.Incrby(ctx, "app1", "req", NumberField, 60); err != nil {
		t.Fatal(err)
	}
	if err := pc.Update(ctx); err != nil {
		t.Fatal(err)
	}

	docs, err := arc.Find(ctx, pc.Collection(), archive.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected one doc, got %d", len(docs))
	}
	if got := docs[0][string(NumberField)]; got != 60.0 {
		t.Fatalf("got %v, want 60", got)
	}

	// Redis accumulator must be reset once rolled into the archive.
	val, err := getFloat64(ctx, store, periodicKey(pc.prefix, pc.Divider, "app1", "req", NumberField), -1)
	if err != nil {
		t.Fatal(err)
	}
	if val != 0 {
		t.Fatalf("accumulator should be reset to 0, got %v", val)
	}
}

func TestPeriodicCounterUpdateBackfillsSkippedIntervals(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store := faststore.NewFake()
	arc := archive.NewFake()
	pc := newTestPeriodic(store, arc, 1, start)
	ctx := context.Background()

	// Establish a prev_upd watermark at `start` with a first, uneventful
	// update — the very first update always assumes exactly one elapsed
	// interval, regardless of how long data has actually been accumulating.
	if err := pc.Update(ctx); err != nil {
		t.Fatal(err)
	}

	if err := pc.Incrby(ctx, "app1", "req", NumberField, 180); err != nil {
		t.Fatal(err)
	}
	// Jump forward 3 whole hours without ever calling Update in between.
	pc.now = func() time.Time { return start.Add(3 * time.Hour) }
	if err := pc.Update(ctx); err != nil {
		t.Fatal(err)
	}

	docs, err := arc.Find(ctx, pc.Collection(), archive.Query{Filter: archive.Doc{"name": "req"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs covering the 3 skipped intervals, got %d", len(docs))
	}
	for _, d := range docs {
		if got := d[string(NumberField)]; got != 60.0 {
			t.Fatalf("each doc should carry value/passed_intervals = 60, got %v", got)
		}
	}
}

func TestPeriodicCounterFindAnomaliesFlagsLargeRelativeChange(t *testing.T) {
	arc := archive.NewFake()
	pc := newTestPeriodic(faststore.NewFake(), arc, 1, time.Now())
	ctx := context.Background()

	now := pc.now()
	refDate := now.Add(-20 * time.Hour)
	checkDate := now.Add(-1 * time.Hour)

	if err := arc.Insert(ctx, pc.Collection(), []archive.Doc{
		{"app_id": "app1", "name": "req", "date": refDate, string(NumberField): 100.0},
		{"app_id": "app1", "name": "req", "date": checkDate, string(NumberField): 5.0},
	}); err != nil {
		t.Fatal(err)
	}

	anomalies, err := pc.FindAnomalies(ctx, 24, 2, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d: %+v", len(anomalies), anomalies)
	}
	if anomalies[0].AppID != "app1" || anomalies[0].Name != "req" || anomalies[0].Field != NumberField {
		t.Fatalf("unexpected anomaly: %+v", anomalies[0])
	}
}

func TestPeriodicCounterFindAnomaliesIgnoresStableSeries(t *testing.T) {
	arc := archive.NewFake()
	pc := newTestPeriodic(faststore.NewFake(), arc, 1, time.Now())
	ctx := context.Background()

	now := pc.now()
	refDate := now.Add(-20 * time.Hour)
	checkDate := now.Add(-1 * time.Hour)

	if err := arc.Insert(ctx, pc.Collection(), []archive.Doc{
		{"app_id": "app1", "name": "req", "date": refDate, string(NumberField): 100.0},
		{"app_id": "app1", "name": "req", "date": checkDate, string(NumberField): 98.0},
	}); err != nil {
		t.Fatal(err)
	}

	anomalies, err := pc.FindAnomalies(ctx, 24, 2, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if len(anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %+v", anomalies)
	}
}
