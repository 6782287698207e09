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

// Package metrics holds the small set of global Prometheus counters shared
// by the ingestor and anomaly detector, in the style of
// internal/ratelimiter/telemetry/churn's package-level metric vars.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AnomaliesTotal counts every anomaly flagged by find_anomalies, across
	// all periodic counters, the way churn counts vsa_commit_errors_total.
	AnomaliesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appstats_anomalies_total",
		Help: "Total number of anomalies flagged by the periodic-counter comparison.",
	})

	// IngestDroppedTotal counts stats batches dropped by the ingestor's
	// oldest-drop backpressure policy.
	IngestDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appstats_ingest_dropped_total",
		Help: "Total number of stats batches dropped because the ingest queue was full.",
	})
)

func init() {
	prometheus.MustRegister(AnomaliesTotal, IngestDroppedTotal)
}
