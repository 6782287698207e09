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

package faststore

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// Fake is an in-memory Store used by tests. It is not meant to be fast or
// concurrent-safe in a lock-free sense; it just needs to behave like Redis
// for the handful of commands the counter subsystem uses.
type Fake struct {
	mu     sync.Mutex
	floats map[string]float64
	lists  map[string][]string
	zsets  map[string]map[string]float64
	locks  map[string]string
}

// NewFake returns an empty fake store.
func NewFake() *Fake {
	return &Fake{
		floats: map[string]float64{},
		lists:  map[string][]string{},
		zsets:  map[string]map[string]float64{},
		locks:  map[string]string{},
	}
}

func (f *Fake) IncrByFloat(_ context.Context, key string, delta float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.floats[key] += delta
	return f.floats[key], nil
}

func (f *Fake) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.floats[key]
	if !ok {
		return "", false, nil
	}
	return formatFloat(v), true, nil
}

func (f *Fake) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.floats[key] = parseFloat(value)
	return nil
}

func (f *Fake) RPush(_ context.Context, key string, values ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append(f.lists[key], values...)
	return nil
}

func (f *Fake) LPop(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	if len(l) == 0 {
		return "", false, nil
	}
	v := l[0]
	f.lists[key] = l[1:]
	return v, true, nil
}

func (f *Fake) LLen(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[key])), nil
}

func (f *Fake) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	n := int64(len(l))
	if n == 0 {
		return nil, nil
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, l[start:stop+1])
	return out, nil
}

func (f *Fake) ZAdd(_ context.Context, key, member string, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.zsets[key] == nil {
		f.zsets[key] = map[string]float64{}
	}
	f.zsets[key][member] = score
	return nil
}

func (f *Fake) ZRemRangeByScore(_ context.Context, key string, min, max float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for member, score := range f.zsets[key] {
		if score >= min && score <= max {
			delete(f.zsets[key], member)
		}
	}
	return nil
}

func (f *Fake) ZScan(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]string, 0, len(f.zsets[key]))
	for m := range f.zsets[key] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (f *Fake) Pipeline() Pipeline {
	return &fakePipeline{store: f}
}

func (f *Fake) Lock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.locks[key]; held {
		return "", false, nil
	}
	token := key + "-token"
	f.locks[key] = token
	return token, true, nil
}

func (f *Fake) Unlock(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[key] == token {
		delete(f.locks, key)
	}
	return nil
}

type fakeOp struct {
	kind  int // 0=incrbyfloat,1=set,2=lpop,3=rpush
	key   string
	value string
	delta float64
}

type fakePipeline struct {
	store *Fake
	ops   []fakeOp
}

func (p *fakePipeline) IncrByFloat(key string, delta float64) {
	p.ops = append(p.ops, fakeOp{kind: 0, key: key, delta: delta})
}
func (p *fakePipeline) Set(key, value string) {
	p.ops = append(p.ops, fakeOp{kind: 1, key: key, value: value})
}
func (p *fakePipeline) LPop(key string) {
	p.ops = append(p.ops, fakeOp{kind: 2, key: key})
}
func (p *fakePipeline) RPush(key, value string) {
	p.ops = append(p.ops, fakeOp{kind: 3, key: key, value: value})
}
func (p *fakePipeline) Len() int { return len(p.ops) }

func (p *fakePipeline) Exec(ctx context.Context) error {
	for _, op := range p.ops {
		switch op.kind {
		case 0:
			_, _ = p.store.IncrByFloat(ctx, op.key, op.delta)
		case 1:
			_ = p.store.Set(ctx, op.key, op.value)
		case 2:
			_, _, _ = p.store.LPop(ctx, op.key)
		case 3:
			_ = p.store.RPush(ctx, op.key, op.value)
		}
	}
	p.ops = nil
	return nil
}
