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
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore is a production Store backed by github.com/redis/go-redis/v9.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials a single Redis instance at addr/db.
func NewRedisStore(host string, port, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
		DB:   db,
	})
	return &RedisStore{client: client}
}

func (s *RedisStore) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	return s.client.IncrByFloat(ctx, key, delta).Result()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) RPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.client.RPush(ctx, key, args...).Err()
}

func (s *RedisStore) LPop(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	return s.client.LLen(ctx, key).Result()
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.client.LRange(ctx, key, start, stop).Result()
}

func (s *RedisStore) ZAdd(ctx context.Context, key, member string, score float64) error {
	return s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *RedisStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	return s.client.ZRemRangeByScore(ctx, key, fmt.Sprintf("%f", min), fmt.Sprintf("%f", max)).Err()
}

func (s *RedisStore) ZScan(ctx context.Context, key string) ([]string, error) {
	var members []string
	var cursor uint64
	for {
		keysAndScores, next, err := s.client.ZScan(ctx, key, cursor, "", 0).Result()
		if err != nil {
			return nil, err
		}
		for i := 0; i+1 < len(keysAndScores); i += 2 {
			members = append(members, keysAndScores[i])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return members, nil
}

func (s *RedisStore) Pipeline() Pipeline {
	return &redisPipeline{pipe: s.client.Pipeline()}
}

// unlockScript releases a lock iff the stored value still matches the token we
// were given at acquisition time, preventing us from deleting a lock that
// expired and was re-acquired by someone else.
const unlockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
else
  return 0
end
`

func (s *RedisStore) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token, err := randomToken()
	if err != nil {
		return "", false, err
	}
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (s *RedisStore) Unlock(ctx context.Context, key, token string) error {
	return s.client.Eval(ctx, unlockScript, []string{key}, token).Err()
}

func randomToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

type redisPipeline struct {
	pipe redis.Pipeliner
	n    int
}

func (p *redisPipeline) IncrByFloat(key string, delta float64) {
	p.pipe.IncrByFloat(context.Background(), key, delta)
	p.n++
}

func (p *redisPipeline) Set(key, value string) {
	p.pipe.Set(context.Background(), key, value, 0)
	p.n++
}

func (p *redisPipeline) LPop(key string) {
	p.pipe.LPop(context.Background(), key)
	p.n++
}

func (p *redisPipeline) RPush(key, value string) {
	p.pipe.RPush(context.Background(), key, value)
	p.n++
}

func (p *redisPipeline) Len() int { return p.n }

func (p *redisPipeline) Exec(ctx context.Context) error {
	if p.n == 0 {
		return nil
	}
	_, err := p.pipe.Exec(ctx)
	p.n = 0
	return err
}
