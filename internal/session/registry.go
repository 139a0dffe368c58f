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

// Package session is the administrative control surface over counter
// instances: it creates and destroys named counter sessions so
// instrumentation call sites can resolve the counter they feed. It is thin
// glue around the tally package and takes no part in the concurrent core.
package session

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tally"
)

var (
	// ErrDuplicate reports a session name that is already registered.
	ErrDuplicate = errors.New("session: name already registered")
	// ErrUnknown reports a session name with no registered counter.
	ErrUnknown = errors.New("session: unknown name")
)

// Registry manages named counter sessions. It is safe for concurrent use.
type Registry struct {
	sessions sync.Map
	logger   *zap.Logger
}

// NewRegistry returns an empty registry. A nil logger defaults to a no-op.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger}
}

// Create builds a counter and registers it under name. The counter is
// destroyed again if another session won the name race.
func (r *Registry) Create(name string, cfg tally.Config, dims []tally.Dimension, globalSumStep int64, opts ...tally.Option) (*tally.Counter, error) {
	c, err := tally.New(cfg, dims, globalSumStep, opts...)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", name, err)
	}
	if _, loaded := r.sessions.LoadOrStore(name, c); loaded {
		c.Destroy()
		return nil, fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	r.logger.Info("counter session created",
		zap.String("session", name),
		zap.Int("dimensions", c.NrDimensions()),
		zap.Int("shards", c.Shards()))
	return c, nil
}

// Get resolves a session name to its counter.
func (r *Registry) Get(name string) (*tally.Counter, error) {
	v, ok := r.sessions.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return v.(*tally.Counter), nil
}

// Destroy removes the session and releases its counter storage. The caller
// must guarantee no writer or reader is still using the counter.
func (r *Registry) Destroy(name string) error {
	v, ok := r.sessions.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	v.(*tally.Counter).Destroy()
	r.logger.Info("counter session destroyed", zap.String("session", name))
	return nil
}

// DestroyAll tears down every session. Same quiescence precondition as
// Destroy.
func (r *Registry) DestroyAll() {
	r.sessions.Range(func(key, value interface{}) bool {
		r.sessions.Delete(key)
		value.(*tally.Counter).Destroy()
		return true
	})
}

// ForEach iterates over all sessions.
func (r *Registry) ForEach(f func(name string, c *tally.Counter)) {
	r.sessions.Range(func(key, value interface{}) bool {
		f(key.(string), value.(*tally.Counter))
		return true
	})
}
