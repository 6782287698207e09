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

package view

import (
	"context"
	"testing"
	"time"

	"appstats/internal/archive"
	"appstats/internal/counter"
	"appstats/internal/faststore"
)

func TestBuilderRebuildFlattensHourAndDay(t *testing.T) {
	ctx := context.Background()
	fields := counter.NewFieldSet([]string{"TIME"})
	store := faststore.NewFake()
	arc := archive.NewFake()

	hour := counter.NewRollingCounter(store, fields, "v_apps", 3600, 60, 10*24*time.Hour)
	day := counter.NewRollingCounter(store, fields, "v_apps", 86400, 3600, 10*24*time.Hour)

	if err := hour.Incrby(ctx, "app1", "req", counter.NumberField, 10); err != nil {
		t.Fatal(err)
	}
	if err := hour.Incrby(ctx, "app1", "req", counter.Field("TIME"), 50); err != nil {
		t.Fatal(err)
	}
	if err := day.Incrby(ctx, "app1", "req", counter.NumberField, 240); err != nil {
		t.Fatal(err)
	}
	if err := day.Incrby(ctx, "app1", "req", counter.Field("TIME"), 1200); err != nil {
		t.Fatal(err)
	}

	b := New(arc, "view_docs", hour, day)
	if err := b.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}

	docs, err := arc.Find(ctx, "view_docs", archive.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 flattened doc, got %d", len(docs))
	}
	doc := docs[0]

	if got := doc["NUMBER_hour"]; got != 10.0 {
		t.Fatalf("NUMBER_hour = %v, want 10", got)
	}
	if got := doc["TIME_hour"]; got != 50.0 {
		t.Fatalf("TIME_hour = %v, want 50", got)
	}
	if got := doc["TIME_hour_aver"]; got != 5.0 {
		t.Fatalf("TIME_hour_aver (mean per event) = %v, want 5", got)
	}
	if got := doc["NUMBER_hour_aver"]; got != 10.0/3600.0 {
		t.Fatalf("NUMBER_hour_aver (events/sec) = %v, want %v", got, 10.0/3600.0)
	}
	if got := doc["NUMBER_day"]; got != 240.0 {
		t.Fatalf("NUMBER_day = %v, want 240", got)
	}
	if got := doc["TIME_day_aver"]; got != 5.0 {
		t.Fatalf("TIME_day_aver = %v, want 5", got)
	}
}

func TestBuilderRebuildOmitsAveragesWhenNumberIsZero(t *testing.T) {
	ctx := context.Background()
	fields := counter.NewFieldSet([]string{"TIME"})
	store := faststore.NewFake()
	arc := archive.NewFake()

	hour := counter.NewRollingCounter(store, fields, "v_apps2", 3600, 60, 10*24*time.Hour)
	day := counter.NewRollingCounter(store, fields, "v_apps2", 86400, 3600, 10*24*time.Hour)

	// Only touch TIME, never NUMBER, so reqCount stays 0 and averages are
	// left absent for this identifier.
	if err := hour.Incrby(ctx, "app1", "req", counter.Field("TIME"), 50); err != nil {
		t.Fatal(err)
	}

	b := New(arc, "view_docs2", hour, day)
	if err := b.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}

	docs, err := arc.Find(ctx, "view_docs2", archive.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	if _, ok := docs[0]["TIME_hour_aver"]; ok {
		t.Fatalf("expected TIME_hour_aver to be absent when NUMBER is 0, got %v", docs[0]["TIME_hour_aver"])
	}
	if got := docs[0]["TIME_hour"]; got != 50.0 {
		t.Fatalf("TIME_hour = %v, want 50", got)
	}
}
