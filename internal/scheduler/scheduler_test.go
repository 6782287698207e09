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

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingUpdater struct {
	calls int32
}

func (c *countingUpdater) Update(context.Context) error {
	atomic.AddInt32(&c.calls, 1)
	return nil
}

func TestSchedulerRunsRegisteredJobsPeriodically(t *testing.T) {
	s := New()
	u := &countingUpdater{}
	s.Add("test-job", 10*time.Millisecond, u)

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&u.calls) >= 3 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least 3 ticks, got %d", atomic.LoadInt32(&u.calls))
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := New()
	s.Add("noop", time.Hour, &countingUpdater{})
	s.Start(context.Background())

	s.Stop()
	s.Stop() // must not panic or block
}
