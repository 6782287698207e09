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

// Package scheduler drives periodic Update() calls across every configured
// RollingCounter and PeriodicCounter, one goroutine per counter, modeled
// directly on internal/ratelimiter/core/worker.go's Worker.Start/Stop
// (stopChan + sync.WaitGroup + an idempotent-stop guard).
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"appstats/internal/applog"
	"appstats/internal/counter"
)

// Updater is satisfied by *counter.RollingCounter and *counter.PeriodicCounter.
type Updater interface {
	Update(ctx context.Context) error
}

type job struct {
	name     string
	interval time.Duration
	updater  Updater
}

// Scheduler runs one ticker-driven goroutine per registered job.
type Scheduler struct {
	jobs     []job
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// New returns an empty Scheduler; call Add for each counter before Start.
func New() *Scheduler {
	return &Scheduler{stopChan: make(chan struct{})}
}

// Add registers a counter to have Update called every interval.
func (s *Scheduler) Add(name string, interval time.Duration, updater Updater) {
	s.jobs = append(s.jobs, job{name: name, interval: interval, updater: updater})
}

// Start launches one goroutine per registered job.
func (s *Scheduler) Start(ctx context.Context) {
	applog.Info("starting rollup scheduler (%d jobs)", len(s.jobs))
	s.wg.Add(len(s.jobs))
	for _, j := range s.jobs {
		j := j
		go func() {
			defer s.wg.Done()
			s.runJob(ctx, j)
		}()
	}
}

// Stop signals every job goroutine to exit and waits for them to finish.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	if !atomic.CompareAndSwapUint32(&s.stopped, 0, 1) {
		return
	}
	applog.Info("stopping rollup scheduler")
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, j job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := j.updater.Update(ctx); err != nil && err != counter.ErrLockHeld {
				applog.Error("%s update failed: %v", j.name, err)
			}
		case <-s.stopChan:
			return
		}
	}
}
