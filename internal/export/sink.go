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

// Package export snapshots aggregated counter values into an external sink.
// It lives entirely outside the concurrent core: snapshots go through the
// counter's public Aggregate and are only exact at quiescence.
package export

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Record is one aggregated reading of a single logical index.
type Record struct {
	Session   string
	Indexes   []int64
	Sum       int64
	Overflow  bool
	Underflow bool
}

// fieldKey flattens the index tuple into a stable hash field name.
func (r Record) fieldKey() string {
	parts := make([]string, len(r.Indexes))
	for i, v := range r.Indexes {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

// Sink receives counter snapshots.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// RedisHashSetter abstracts the minimal surface we need from a Redis client.
// Implementations may wrap github.com/redis/go-redis/v9 (Cmdable.HSet) or any
// equivalent.
type RedisHashSetter interface {
	HSet(ctx context.Context, key string, values ...interface{}) error
}

// GoRedisHashSetter is a production Redis client wrapper implementing
// RedisHashSetter on top of github.com/redis/go-redis/v9.
type GoRedisHashSetter struct{ c *redis.Client }

// NewGoRedisHashSetter constructs the wrapper for an address like
// "127.0.0.1:6379".
func NewGoRedisHashSetter(addr string) *GoRedisHashSetter {
	return &GoRedisHashSetter{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisHashSetter) HSet(ctx context.Context, key string, values ...interface{}) error {
	return g.c.HSet(ctx, key, values...).Err()
}

// RedisSink stores snapshots as hash fields, one hash per session:
// <prefix>:<session> { "<i0,i1,...>" -> "<sum>|<of>|<uf>" }. Re-exports of
// the same index overwrite the previous field, so the hash always holds the
// latest snapshot.
type RedisSink struct {
	client    RedisHashSetter
	keyPrefix string
}

// NewRedisSink returns a sink writing under keyPrefix (default "tally").
func NewRedisSink(client RedisHashSetter, keyPrefix string) *RedisSink {
	if keyPrefix == "" {
		keyPrefix = "tally"
	}
	return &RedisSink{client: client, keyPrefix: keyPrefix}
}

func (s *RedisSink) Write(ctx context.Context, rec Record) error {
	key := s.keyPrefix + ":" + rec.Session
	value := fmt.Sprintf("%d|%t|%t", rec.Sum, rec.Overflow, rec.Underflow)
	if err := s.client.HSet(ctx, key, rec.fieldKey(), value); err != nil {
		return fmt.Errorf("export: hset %s: %w", key, err)
	}
	return nil
}

// LoggingSink writes snapshots to a logger. It lets demos and tests select a
// sink without a real Redis. Not for production use.
type LoggingSink struct{ logger *zap.Logger }

// NewLoggingSink returns a sink that logs each record. A nil logger defaults
// to a no-op.
func NewLoggingSink(logger *zap.Logger) *LoggingSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingSink{logger: logger}
}

func (s *LoggingSink) Write(ctx context.Context, rec Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.logger.Info("counter snapshot",
		zap.String("session", rec.Session),
		zap.String("index", rec.fieldKey()),
		zap.Int64("sum", rec.Sum),
		zap.Bool("overflow", rec.Overflow),
		zap.Bool("underflow", rec.Underflow))
	return nil
}
