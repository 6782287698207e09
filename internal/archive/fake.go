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

package archive

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Fake is an in-memory Store used by tests.
type Fake struct {
	mu    sync.Mutex
	colls map[string][]Doc
}

func NewFake() *Fake {
	return &Fake{colls: map[string][]Doc{}}
}

func cloneDoc(d Doc) Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func matches(d Doc, filter Doc) bool {
	for k, v := range filter {
		if sub, ok := v.(Doc); ok {
			if gt, ok := sub["$gt"]; ok {
				t, ok1 := d[k].(time.Time)
				gtT, ok2 := gt.(time.Time)
				if !ok1 || !ok2 || !t.After(gtT) {
					return false
				}
			}
			if lt, ok := sub["$lt"]; ok {
				t, ok1 := d[k].(time.Time)
				ltT, ok2 := lt.(time.Time)
				if !ok1 || !ok2 || !t.Before(ltT) {
					return false
				}
			}
			if lte, ok := sub["$lte"]; ok {
				t, ok1 := d[k].(time.Time)
				lteT, ok2 := lte.(time.Time)
				if !ok1 || !ok2 || t.After(lteT) {
					return false
				}
			}
			continue
		}
		if d[k] != v {
			return false
		}
	}
	return true
}

func (f *Fake) Insert(_ context.Context, collection string, docs []Doc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range docs {
		f.colls[collection] = append(f.colls[collection], cloneDoc(d))
	}
	return nil
}

func (f *Fake) Find(_ context.Context, collection string, q Query) ([]Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Doc
	for _, d := range f.colls[collection] {
		if matches(d, q.Filter) {
			out = append(out, cloneDoc(d))
		}
	}
	if q.SortField != "" {
		dir := q.SortDir
		if dir == 0 {
			dir = Ascending
		}
		sort.SliceStable(out, func(i, j int) bool {
			vi, vj := out[i][q.SortField], out[j][q.SortField]
			ti, oki := vi.(time.Time)
			tj, okj := vj.(time.Time)
			if oki && okj {
				if dir == Ascending {
					return ti.Before(tj)
				}
				return tj.Before(ti)
			}
			return false
		})
	}
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *Fake) FindOne(ctx context.Context, collection string, filter Doc) (Doc, bool, error) {
	docs, err := f.Find(ctx, collection, Query{Filter: filter, Limit: 1})
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

func (f *Fake) Remove(_ context.Context, collection string, filter Doc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []Doc
	for _, d := range f.colls[collection] {
		if !matches(d, filter) {
			kept = append(kept, d)
		}
	}
	f.colls[collection] = kept
	return nil
}

func (f *Fake) EnsureIndex(_ context.Context, _ string, _ []IndexKey, _ time.Duration) error {
	return nil
}

func (f *Fake) ReplaceAll(_ context.Context, collection string, docs []Doc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cloned := make([]Doc, len(docs))
	for i, d := range docs {
		cloned[i] = cloneDoc(d)
	}
	f.colls[collection] = cloned
	return nil
}

func (f *Fake) AggregateAvg(_ context.Context, collection string, match Doc, groupBy []string, avgFields []string) ([]AggResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	type acc struct {
		sums   map[string]float64
		counts map[string]int
		key    map[string]string
	}
	groups := map[string]*acc{}
	var order []string
	for _, d := range f.colls[collection] {
		if !matches(d, match) {
			continue
		}
		keyParts := make(map[string]string, len(groupBy))
		id := ""
		for _, g := range groupBy {
			s, _ := d[g].(string)
			keyParts[g] = s
			id += "\x00" + s
		}
		a, ok := groups[id]
		if !ok {
			a = &acc{sums: map[string]float64{}, counts: map[string]int{}, key: keyParts}
			groups[id] = a
			order = append(order, id)
		}
		for _, field := range avgFields {
			if v, ok := d[field].(float64); ok {
				a.sums[field] += v
				a.counts[field]++
			}
		}
	}
	results := make([]AggResult, 0, len(groups))
	for _, id := range order {
		a := groups[id]
		res := AggResult{GroupKey: a.key, Averages: map[string]float64{}}
		for _, field := range avgFields {
			if a.counts[field] > 0 {
				res.Averages[field] = a.sums[field] / float64(a.counts[field])
			}
		}
		results = append(results, res)
	}
	return results, nil
}
