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

	"appstats/internal/faststore"
)

func newTestRolling(store faststore.Store, start time.Time) *RollingCounter {
	fields := NewFieldSet(nil)
	rc := NewRollingCounter(store, fields, "test_apps", 3600, 60, 10*24*time.Hour)
	rc.now = func() time.Time { return start }
	return rc
}

func TestRollingCounterIncrbyRejectsComma(t *testing.T) {
	rc := newTestRolling(faststore.NewFake(), time.Now())
	ctx := context.Background()

	if err := rc.Incrby(ctx, "a,b", "name", NumberField, 1); err != ErrInvalidAppID {
		t.Fatalf("got %v, want ErrInvalidAppID", err)
	}
	if err := rc.Incrby(ctx, "app", "na,me", NumberField, 1); err != ErrInvalidName {
		t.Fatalf("got %v, want ErrInvalidName", err)
	}
}

func TestRollingCounterIncrbyIgnoresUnknownField(t *testing.T) {
	rc := newTestRolling(faststore.NewFake(), time.Now())
	ctx := context.Background()

	if err := rc.Incrby(ctx, "app1", "req", Field("bogus"), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vals, err := rc.GetVals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 0 {
		t.Fatalf("expected no tracked identifiers, got %v", vals)
	}
}

func TestRollingCounterGetValsBeforeUpdate(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	rc := newTestRolling(faststore.NewFake(), start)
	ctx := context.Background()

	if err := rc.Incrby(ctx, "app1", "req", NumberField, 3); err != nil {
		t.Fatal(err)
	}
	if err := rc.Incrby(ctx, "app1", "req", NumberField, 4); err != nil {
		t.Fatal(err)
	}

	vals, err := rc.GetVals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got := vals["app1"]["req"][NumberField]
	if got != 7 {
		t.Fatalf("got %v, want 7", got)
	}
}

func TestRollingCounterUpdateShiftsPartsAndResetsLastVal(t *testing.T) {
	store := faststore.NewFake()
	start := time.Unix(1_700_000_000, 0).UTC()
	rc := newTestRolling(store, start)
	ctx := context.Background()

	if err := rc.Incrby(ctx, "app1", "req", NumberField, 120); err != nil {
		t.Fatal(err)
	}

	// First update establishes the part list and the baseline "updated" ts.
	if err := rc.Update(ctx); err != nil {
		t.Fatal(err)
	}

	// Advance past two full parts (secs_per_part=60).
	rc.now = func() time.Time { return start.Add(130 * time.Second) }
	if err := rc.Update(ctx); err != nil {
		t.Fatal(err)
	}

	vals, err := rc.GetVals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got := vals["app1"]["req"][NumberField]
	if got != 120 {
		t.Fatalf("sum across parts should be conserved by the shift, got %v", got)
	}
}

func TestRollingCounterUpdateClampsShiftsToNumParts(t *testing.T) {
	store := faststore.NewFake()
	start := time.Unix(1_700_000_000, 0).UTC()
	rc := newTestRolling(store, start)
	ctx := context.Background()

	if err := rc.Incrby(ctx, "app1", "req", NumberField, 60); err != nil {
		t.Fatal(err)
	}
	if err := rc.Update(ctx); err != nil {
		t.Fatal(err)
	}

	// Advance far beyond the whole window (60 parts * 60s = 3600s). The part
	// list only ever holds numParts-1 slots, so once num_of_new_parts
	// exceeds that the clamp is lossy versus a naive full-window sum — this
	// matches the original counter's shift math exactly.
	rc.now = func() time.Time { return start.Add(10 * time.Hour) }
	if err := rc.Update(ctx); err != nil {
		t.Fatal(err)
	}

	vals, err := rc.GetVals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got := vals["app1"]["req"][NumberField]
	// GetVals adds the parts one at a time, so the expected value is built
	// the same way rather than by a single multiplication.
	want := 0.0
	for i := 0; i < rc.numParts-1; i++ {
		want += 60.0 / 600.0
	}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRollingCounterUpdateNoOpWhenLockHeld(t *testing.T) {
	store := faststore.NewFake()
	start := time.Unix(1_700_000_000, 0).UTC()
	rc := newTestRolling(store, start)
	ctx := context.Background()

	token, ok, err := store.Lock(ctx, rollingLockKey(rc.prefix, rc.Interval, rc.SecsPerPart), 5*time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected to acquire lock directly, ok=%v err=%v", ok, err)
	}
	defer store.Unlock(ctx, rollingLockKey(rc.prefix, rc.Interval, rc.SecsPerPart), token)

	if err := rc.Update(ctx); err != ErrLockHeld {
		t.Fatalf("got %v, want ErrLockHeld", err)
	}
}
