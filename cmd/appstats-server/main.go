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

// Package main provides the entry point for the appstats aggregator's
// ingest server.
//
// It wires together the two stores (Redis-backed FastStore, Mongo-backed
// Archive), the rolling and periodic counters for the apps and tasks stats
// kinds, the background ingestors that apply incoming batches off the
// request path, the rollup scheduler that drives every counter's Update,
// the materialized-view builders the dashboard reads, and the HTTP ingest
// API — then blocks for SIGINT/SIGTERM and shuts everything down in order.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"appstats/internal/api"
	"appstats/internal/archive"
	"appstats/internal/config"
	"appstats/internal/counter"
	"appstats/internal/faststore"
	"appstats/internal/ingest"
	"appstats/internal/metrics"
	"appstats/internal/scheduler"
	"appstats/internal/view"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults applied when empty)")
	redisHost := flag.String("redis_host", "", "Override redis_host from config")
	redisPort := flag.Int("redis_port", 0, "Override redis_port from config")
	mongoURI := flag.String("mongo_uri", "", "Override mongo_uri from config")
	httpAddr := flag.String("http_addr", ":8080", "HTTP listen address (e.g., :8080)")
	rollupInterval := flag.Duration("rollup_interval", 30*time.Second, "Tick the scheduler uses for every rolling and periodic counter's Update")
	viewInterval := flag.Duration("view_interval", time.Minute, "How often materialized views are rebuilt")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *redisHost != "" {
		cfg.RedisHost = *redisHost
	}
	if *redisPort != 0 {
		cfg.RedisPort = *redisPort
	}
	if *mongoURI != "" {
		cfg.MongoURI = *mongoURI
	}

	store := faststore.NewRedisStore(cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	arc, err := archive.Dial(ctx, cfg.MongoURI, cfg.MongoDBName)
	cancel()
	if err != nil {
		log.Fatalf("dial mongo: %v", err)
	}

	fields := counter.NewFieldSet(cfg.FieldKeys())

	apps := buildStatsKind(store, arc, fields, cfg, "apps_stats")
	tasks := buildStatsKind(store, arc, fields, cfg, "tasks_stats")

	apps.ingestor.Start()
	tasks.ingestor.Start()

	sched := scheduler.New()
	for _, kind := range []statsKind{apps, tasks} {
		sched.Add(kind.name+"_hour", *rollupInterval, kind.hour)
		sched.Add(kind.name+"_day", *rollupInterval, kind.day)
		for i, pc := range kind.periodic {
			sched.Add(fmt.Sprintf("%s_periodic_%d", kind.name, i), *rollupInterval, pc)
		}
	}
	sched.Start(context.Background())

	appsView := view.New(arc, "appstats_docs", apps.hour, apps.day)
	tasksView := view.New(arc, "appstats_tasks_docs", tasks.hour, tasks.day)
	stopViews := make(chan struct{})
	go runViewLoop(stopViews, *viewInterval, appsView, tasksView)

	srv := api.NewServer(apps.ingestor, tasks.ingestor, arc)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: mux,
	}

	go func() {
		fmt.Printf("appstats ingest server listening on %s\n", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("could not listen on %s: %v", *httpAddr, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("\nshutting down appstats server...")
	sched.Stop()
	apps.ingestor.Stop()
	tasks.ingestor.Stop()
	close(stopViews)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}
	fmt.Println("appstats server gracefully stopped.")
}

// statsKind bundles every counter topology instance for one of the two
// stats kinds (apps_stats, tasks_stats), per spec §2's fixed resolutions:
// hour/60s and day/1h rolling windows, plus the three periodic dividers
// (60/6/1) retained for 6h/144h/4368h.
type statsKind struct {
	name     string
	hour     *counter.RollingCounter
	day      *counter.RollingCounter
	periodic []*counter.PeriodicCounter
	ingestor *ingest.Ingestor
}

func buildStatsKind(store faststore.Store, arc archive.Store, fields counter.FieldSet, cfg config.Config, name string) statsKind {
	prefix := cfg.RedisPrefix + ":" + name

	var rolling []*counter.RollingCounter
	for _, r := range cfg.Rolling {
		rolling = append(rolling, counter.NewRollingCounter(store, fields, prefix, r.IntervalSeconds, r.SecsPerPart, cfg.IdleTTL))
	}
	hour, day := rolling[0], rolling[1]

	var periodic []*counter.PeriodicCounter
	for _, p := range cfg.Periodic {
		periodic = append(periodic, counter.NewPeriodicCounter(store, arc, fields, prefix, name, p.Divider, time.Duration(p.PeriodHours)*time.Hour, cfg.IdleTTL))
	}

	targets := make([]ingest.Target, 0, len(rolling)+len(periodic))
	for _, r := range rolling {
		targets = append(targets, r)
	}
	for _, p := range periodic {
		targets = append(targets, p)
	}
	ingestor := ingest.New(name, targets, 4096, metrics.IngestDroppedTotal)

	return statsKind{name: name, hour: hour, day: day, periodic: periodic, ingestor: ingestor}
}

func runViewLoop(stop <-chan struct{}, interval time.Duration, builders ...*view.Builder) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, b := range builders {
				if err := b.Rebuild(context.Background()); err != nil {
					log.Printf("view rebuild failed: %v", err)
				}
			}
		case <-stop:
			return
		}
	}
}
