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

// Package archive defines the capability interface the periodic counter,
// materialized view builder and anomaly detector need from a durable
// document store, and a MongoDB-backed implementation of it.
package archive

import (
	"context"
	"time"
)

// Doc is a loosely-typed document, the way the source system represents
// Archive rows — an outer mapping keyed by string, with values drawn from a
// small closed set of scalar types (string, float64, time.Time).
type Doc map[string]interface{}

// SortDir is the sort direction for Find.
type SortDir int

const (
	Ascending  SortDir = 1
	Descending SortDir = -1
)

// Query describes a find with optional sort and limit, mirroring
// find(query).sort(field, dir).limit(n) from spec §2.
type Query struct {
	Filter    Doc
	SortField string
	SortDir   SortDir
	Limit     int64
}

// IndexKey is one field of a compound index.
type IndexKey struct {
	Field string
	Dir   SortDir
}

// AggResult is one row of a $match/$group/$avg aggregation, keyed by the
// group-by fields plus one float64 per averaged field.
type AggResult struct {
	GroupKey map[string]string
	Averages map[string]float64
}

// Store is the minimal document-store surface the core needs.
type Store interface {
	Insert(ctx context.Context, collection string, docs []Doc) error
	Find(ctx context.Context, collection string, q Query) ([]Doc, error)
	FindOne(ctx context.Context, collection string, filter Doc) (Doc, bool, error)
	Remove(ctx context.Context, collection string, filter Doc) error
	EnsureIndex(ctx context.Context, collection string, keys []IndexKey, ttl time.Duration) error

	// ReplaceAll atomically swaps the full contents of collection with docs:
	// remove all, then insert new — used by the materialized view builder.
	ReplaceAll(ctx context.Context, collection string, docs []Doc) error

	// AggregateAvg runs {$match: match}, {$group: {_id: groupBy fields, avgField: {$avg: "$avgField"}, ...}}
	// and returns one AggResult per distinct groupBy combination.
	AggregateAvg(ctx context.Context, collection string, match Doc, groupBy []string, avgFields []string) ([]AggResult, error)
}
