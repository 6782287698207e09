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

// Package api implements the public-facing HTTP ingest server: /add/apps_stats,
// /add/tasks_stats, /add/event, and /healthz. It follows the teacher's own
// http.ServeMux + RegisterRoutes/ListenAndServe shape
// (internal/ratelimiter/api/server.go) rather than pulling in a router
// library the teacher never reached for.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"appstats/internal/applog"
	"appstats/internal/archive"
	"appstats/internal/ingest"
)

const eventsCollection = "appstats_events"
const eventsTTL = time.Hour

// eventPayload is the wire shape accepted by POST /add/event.
type eventPayload struct {
	AppID     string `json:"app_id"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
	Descr     string `json:"descr"`
}

// Server owns the ingest pipelines for apps/tasks stats plus the events
// collection they share an Archive with.
type Server struct {
	apps    *ingest.Ingestor
	tasks   *ingest.Ingestor
	archive archive.Store
}

// NewServer wires the two ingestors (already Start()ed by the caller) and
// the archive used for the events sink.
func NewServer(apps, tasks *ingest.Ingestor, arc archive.Store) *Server {
	return &Server{apps: apps, tasks: tasks, archive: arc}
}

// RegisterRoutes attaches every handler to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/add/apps_stats", s.handleAddStats(s.apps))
	mux.HandleFunc("/add/tasks_stats", s.handleAddStats(s.tasks))
	mux.HandleFunc("/add/event", s.handleAddEvent)
	mux.HandleFunc("/healthz", s.handleHealthz)
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	applog.Info("appstats ingest server listening on %s", addr)
	return httpServer.ListenAndServe()
}

// handleAddStats decodes a {app_id: {name: {field: delta}}} body and
// enqueues it for asynchronous application, returning "ok" immediately
// regardless of increment outcome — the response is written before the
// batch is handed to the ingestor, so client latency never depends on
// Redis round-trips (spec §5's response/ingestion decoupling).
func (s *Server) handleAddStats(target *ingest.Ingestor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var batch ingest.Batch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
		if target != nil {
			target.Enqueue(batch)
		}
	}
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var events []eventPayload
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if len(events) > 0 {
		docs := make([]archive.Doc, len(events))
		for i, e := range events {
			docs[i] = archive.Doc{
				"app_id": e.AppID,
				"title":  e.Title,
				"date":   time.Unix(e.Timestamp, 0).UTC(),
				"descr":  e.Descr,
			}
		}
		if err := s.archive.Insert(ctx, eventsCollection, docs); err != nil {
			applog.Error("add/event: insert failed: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	if err := s.archive.EnsureIndex(ctx, eventsCollection, []archive.IndexKey{
		{Field: "date", Dir: archive.Ascending},
		{Field: "app_id", Dir: archive.Ascending},
	}, eventsTTL); err != nil {
		applog.Warn("add/event: ensure_index failed: %v", err)
	}
	fmt.Fprint(w, "ok")
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}
