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

// Package counter implements the RollingCounter and PeriodicCounter
// aggregators that are the hard engineering core of the statistics
// aggregator: sliding-window rate estimation, aligned-bucket rollup, and
// the advisory-lock scheduling discipline shared by both.
package counter

// Field names a tracked metric column. NUMBER is always present and
// represents "count of events"; all others accumulate domain values.
type Field string

// NumberField is the implicit event counter.
const NumberField Field = "NUMBER"

// FieldSet is the closed set of fields a counter instance tracks.
type FieldSet map[Field]struct{}

// NewFieldSet builds a FieldSet from configured keys, always including
// NUMBER even if the caller forgot it.
func NewFieldSet(keys []string) FieldSet {
	fs := make(FieldSet, len(keys)+1)
	fs[NumberField] = struct{}{}
	for _, k := range keys {
		fs[Field(k)] = struct{}{}
	}
	return fs
}

// Has reports whether f is a configured field.
func (fs FieldSet) Has(f Field) bool {
	_, ok := fs[f]
	return ok
}

// Slice returns the fields in no particular order.
func (fs FieldSet) Slice() []Field {
	out := make([]Field, 0, len(fs))
	for f := range fs {
		out = append(out, f)
	}
	return out
}
