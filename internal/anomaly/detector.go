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

// Package anomaly wraps PeriodicCounter.FindAnomalies with the notification
// fan-out (console/email) the CLI's find_anomalies subcommand exposes, and
// counts every anomaly on the shared Prometheus registry, the way
// internal/ratelimiter/telemetry/churn exposes its KPI counters alongside
// the detection logic it instruments.
package anomaly

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"appstats/internal/applog"
	"appstats/internal/counter"
)

// Source is satisfied by *counter.PeriodicCounter; factored out so tests can
// stub it without a real Archive behind it.
type Source interface {
	FindAnomalies(ctx context.Context, refHours, checkHours int, sensitivity float64) ([]counter.Anomaly, error)
}

// Notifier delivers a batch of detected anomalies somewhere a human will
// see them (console, email, ...). No concrete email transport ships with
// this module per spec §1/§6 — --mode=email has no implementation to
// dispatch to.
type Notifier interface {
	Notify(ctx context.Context, anomalies []counter.Anomaly) error
}

// ConsoleNotifier prints each anomaly via applog, the default --mode=console
// behavior.
type ConsoleNotifier struct{}

func (ConsoleNotifier) Notify(_ context.Context, anomalies []counter.Anomaly) error {
	if len(anomalies) == 0 {
		applog.Info("find_anomalies: no anomalies detected")
		return nil
	}
	for _, a := range anomalies {
		applog.Summary("anomaly: app_id=%s name=%s field=%s", a.AppID, a.Name, a.Field)
	}
	return nil
}

// Detector runs FindAnomalies across every configured periodic counter and
// hands the combined result to a Notifier.
type Detector struct {
	sources  []Source
	notifier Notifier
	counted  prometheus.Counter
}

// New builds a Detector. counted is typically metrics.AnomaliesTotal; pass
// nil to skip counting (used by tests).
func New(sources []Source, notifier Notifier, counted prometheus.Counter) *Detector {
	return &Detector{sources: sources, notifier: notifier, counted: counted}
}

// Run scans every source for anomalies over the given windows and notifies
// once with the combined list.
func (d *Detector) Run(ctx context.Context, refHours, checkHours int, sensitivity float64) ([]counter.Anomaly, error) {
	if refHours <= 0 || checkHours <= 0 || refHours <= checkHours {
		return nil, fmt.Errorf("anomaly: ref_hours must be positive and greater than check_hours")
	}
	if sensitivity <= 0 || sensitivity >= 1 {
		return nil, fmt.Errorf("anomaly: sensitivity must be in (0, 1)")
	}

	var all []counter.Anomaly
	for _, src := range d.sources {
		found, err := src.FindAnomalies(ctx, refHours, checkHours, sensitivity)
		if err != nil {
			return nil, fmt.Errorf("anomaly: find_anomalies: %w", err)
		}
		all = append(all, found...)
	}

	if d.counted != nil && len(all) > 0 {
		d.counted.Add(float64(len(all)))
	}
	if d.notifier != nil {
		if err := d.notifier.Notify(ctx, all); err != nil {
			return all, fmt.Errorf("anomaly: notify: %w", err)
		}
	}
	return all, nil
}
