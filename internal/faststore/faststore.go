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

// Package faststore defines the capability interface the counter subsystem
// needs from a low-latency key/value store, and a Redis-backed
// implementation of it.
//
// Store is deliberately narrow: integer/float counters, lists, sorted sets,
// plain get/set, pipelining and an advisory lock with TTL. Everything else
// about the underlying client (connection pooling, retries, TLS) stays out
// of this interface so callers can inject a fake in tests, the way the
// persistence adapters in this codebase inject a RedisEvaler/KafkaProducer.
package faststore

import (
	"context"
	"time"
)

// Store is the minimal surface the counter subsystem needs.
type Store interface {
	IncrByFloat(ctx context.Context, key string, delta float64) (float64, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error

	RPush(ctx context.Context, key string, values ...string) error
	LPop(ctx context.Context, key string) (string, bool, error)
	LLen(ctx context.Context, key string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
	ZScan(ctx context.Context, key string) ([]string, error)

	Pipeline() Pipeline

	// Lock acquires an advisory lock keyed to key with the given TTL. It
	// returns a token that must be presented to Unlock so a lock stolen by
	// TTL expiry is never released out from under its new owner.
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Pipeline accumulates mutations and flushes them as one batch. Callers are
// expected to call Exec once Len reaches a bound (REDIS_BUCKET_SIZE in the
// original implementation) to keep memory bounded during a long update().
type Pipeline interface {
	IncrByFloat(key string, delta float64)
	Set(key, value string)
	LPop(key string)
	RPush(key, value string)
	Len() int
	Exec(ctx context.Context) error
}
