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

// Package view builds the flat, per-(app_id, name) materialized document the
// dashboard reads, the Go analogue of original_source/appstats/util.py's
// calc_aver_data/data_to_flat_form pair.
package view

import (
	"context"
	"fmt"

	"appstats/internal/archive"
	"appstats/internal/counter"
)

// snapshot is the raw {app_id: {name: {field: sum}}} shape GetVals returns.
type snapshot map[string]map[string]map[counter.Field]float64

// Builder periodically replaces a view collection with a flattened join of
// an hour-resolution and a day-resolution RollingCounter snapshot.
type Builder struct {
	archive    archive.Store
	collection string
	hour       *counter.RollingCounter
	day        *counter.RollingCounter
}

// New builds a view for the given rolling counter pair, writing into
// collection (e.g. "appstats_docs" or "appstats_tasks_docs").
func New(arc archive.Store, collection string, hour, day *counter.RollingCounter) *Builder {
	return &Builder{archive: arc, collection: collection, hour: hour, day: day}
}

// Rebuild takes a fresh snapshot of both counters, computes averages, and
// atomically replaces the view collection's contents.
func (b *Builder) Rebuild(ctx context.Context) error {
	hourVals, err := b.hour.GetVals(ctx)
	if err != nil {
		return fmt.Errorf("view: snapshot hour counter: %w", err)
	}
	dayVals, err := b.day.GetVals(ctx)
	if err != nil {
		return fmt.Errorf("view: snapshot day counter: %w", err)
	}

	hourAver := averages(hourVals, b.hour.Fields(), float64(b.hour.Interval))
	dayAver := averages(dayVals, b.day.Fields(), float64(b.day.Interval))

	docs := flatten(hourVals, hourAver, dayVals, dayAver, b.hour.Fields())

	if err := b.archive.EnsureIndex(ctx, b.collection, []archive.IndexKey{
		{Field: "app_id", Dir: archive.Ascending},
		{Field: "name", Dir: archive.Ascending},
	}, 0); err != nil {
		return fmt.Errorf("view: ensure index: %w", err)
	}
	if err := b.archive.ReplaceAll(ctx, b.collection, docs); err != nil {
		return fmt.Errorf("view: replace view collection: %w", err)
	}
	return nil
}

// averages computes, per (app_id, name): NUMBER -> events/sec over the
// counter's window, every other field -> mean value per event. When NUMBER
// is 0, every averaged field is left absent (the null in the original).
func averages(vals snapshot, fields []counter.Field, intervalSeconds float64) snapshot {
	out := make(snapshot, len(vals))
	for appID, names := range vals {
		out[appID] = make(map[string]map[counter.Field]float64, len(names))
		for name, counts := range names {
			reqCount := counts[counter.NumberField]
			if reqCount == 0 {
				out[appID][name] = map[counter.Field]float64{}
				continue
			}
			aver := make(map[counter.Field]float64, len(fields))
			for _, f := range fields {
				if f == counter.NumberField {
					aver[f] = counts[f] / intervalSeconds
				} else {
					aver[f] = counts[f] / reqCount
				}
			}
			out[appID][name] = aver
		}
	}
	return out
}

func flatten(hourVals, hourAver, dayVals, dayAver snapshot, fields []counter.Field) []archive.Doc {
	docs := map[[2]string]archive.Doc{}
	get := func(appID, name string) archive.Doc {
		key := [2]string{appID, name}
		d, ok := docs[key]
		if !ok {
			d = archive.Doc{"app_id": appID, "name": name}
			docs[key] = d
		}
		return d
	}

	fill := func(data snapshot, suffix string) {
		for appID, names := range data {
			for name, counts := range names {
				doc := get(appID, name)
				for _, f := range fields {
					if v, ok := counts[f]; ok {
						doc[string(f)+"_"+suffix] = v
					}
				}
			}
		}
	}
	fill(hourVals, "hour")
	fill(hourAver, "hour_aver")
	fill(dayVals, "day")
	fill(dayAver, "day_aver")

	out := make([]archive.Doc, 0, len(docs))
	for _, d := range docs {
		out = append(out, d)
	}
	return out
}
