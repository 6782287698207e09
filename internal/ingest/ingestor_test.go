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

package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"appstats/internal/counter"
)

type recordingTarget struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingTarget) Incrby(_ context.Context, appID, name string, field counter.Field, delta float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, appID+"/"+name+"/"+string(field))
	return nil
}

func (r *recordingTarget) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestIngestorAppliesNumberAndExplicitFields(t *testing.T) {
	target := &recordingTarget{}
	in := New("apps_stats", []Target{target}, 8, nil)
	in.Start()
	defer in.Stop()

	in.Enqueue(Batch{
		"app1": {
			"req": Counts{"TIME": 42.0},
		},
	})

	// NUMBER is implicit (1 call) plus the explicit TIME field (1 call).
	waitFor(t, func() bool { return target.count() == 2 })
}

func TestIngestorSkipsImplicitNumberWhenPresent(t *testing.T) {
	target := &recordingTarget{}
	in := New("apps_stats", []Target{target}, 8, nil)
	in.Start()
	defer in.Stop()

	in.Enqueue(Batch{
		"app1": {
			"req": Counts{"NUMBER": 3.0},
		},
	})

	waitFor(t, func() bool { return target.count() == 1 })
}

func TestIngestorOldestDropUnderBackpressure(t *testing.T) {
	target := &recordingTarget{}
	// Queue size 1 and no Start(): nothing drains, so the second Enqueue
	// must evict the first rather than block.
	in := New("apps_stats", []Target{target}, 1, nil)

	in.Enqueue(Batch{"app1": {"a": Counts{"NUMBER": 1}}})
	done := make(chan struct{})
	go func() {
		in.Enqueue(Batch{"app1": {"b": Counts{"NUMBER": 1}}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked under backpressure")
	}

	if len(in.queue) != 1 {
		t.Fatalf("expected exactly one queued batch, got %d", len(in.queue))
	}
}
