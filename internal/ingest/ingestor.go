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

// Package ingest applies incoming stats batches to every configured counter,
// off the request path. It is the Go analogue of
// original_source/appstats/app.py's add_stats_middleware: the HTTP handler
// enqueues and returns "ok" immediately, and a single background consumer
// per stats kind does the actual incrby work.
package ingest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"appstats/internal/applog"
	"appstats/internal/counter"
)

// Counts maps field name to delta, e.g. {"NUMBER": 1, "TIME": 0.042}.
type Counts map[string]float64

// Batch maps app_id -> name -> Counts, mirroring the JSON body accepted by
// /add/apps_stats and /add/tasks_stats.
type Batch map[string]map[string]Counts

// Target is anything that can absorb a single incrby, satisfied by both
// *counter.RollingCounter and *counter.PeriodicCounter.
type Target interface {
	Incrby(ctx context.Context, appID, name string, field counter.Field, delta float64) error
}

// Ingestor owns one bounded queue and consumer goroutine. When the queue is
// full, the oldest pending batch is dropped in favor of the new one, so a
// slow consumer degrades freshness instead of blocking producers.
type Ingestor struct {
	kind    string
	targets []Target
	queue   chan Batch
	dropped prometheus.Counter

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// New builds an Ingestor that fans every enqueued Batch out to targets.
// kind identifies the stats stream for logging ("apps_stats", "tasks_stats").
func New(kind string, targets []Target, queueSize int, dropped prometheus.Counter) *Ingestor {
	return &Ingestor{
		kind:     kind,
		targets:  targets,
		queue:    make(chan Batch, queueSize),
		dropped:  dropped,
		stopChan: make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (in *Ingestor) Start() {
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		in.loop()
	}()
}

// Stop signals the consumer goroutine to exit and waits for it; batches
// still in the queue are not applied. Safe to call more than once.
func (in *Ingestor) Stop() {
	if !atomic.CompareAndSwapUint32(&in.stopped, 0, 1) {
		return
	}
	close(in.stopChan)
	in.wg.Wait()
}

// Enqueue submits a batch for asynchronous application. It never blocks: if
// the queue is full, the oldest queued batch is dropped to make room.
func (in *Ingestor) Enqueue(b Batch) {
	select {
	case in.queue <- b:
		return
	default:
	}
	select {
	case <-in.queue:
		if in.dropped != nil {
			in.dropped.Inc()
		}
	default:
	}
	select {
	case in.queue <- b:
	default:
		// Lost the race to another producer; drop silently rather than block.
	}
}

func (in *Ingestor) loop() {
	ctx := context.Background()
	for {
		select {
		case b := <-in.queue:
			in.apply(ctx, b)
		case <-in.stopChan:
			return
		}
	}
}

// apply mirrors app.py's add_stats: if a name's counts omit NUMBER, every
// target is incremented by 1 for it first, then every explicit field.
func (in *Ingestor) apply(ctx context.Context, b Batch) {
	for appID, names := range b {
		for name, counts := range names {
			if _, hasNumber := counts[string(counter.NumberField)]; !hasNumber {
				in.incrAll(ctx, appID, name, counter.NumberField, 1)
			}
			for field, val := range counts {
				in.incrAll(ctx, appID, name, counter.Field(field), val)
			}
		}
	}
}

func (in *Ingestor) incrAll(ctx context.Context, appID, name string, field counter.Field, val float64) {
	for _, t := range in.targets {
		if err := t.Incrby(ctx, appID, name, field, val); err != nil {
			applog.Warn("ingest(%s): incrby %s/%s/%s failed: %v", in.kind, appID, name, field, err)
		}
	}
}
