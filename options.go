// Copyright 2024-2026 The cachelb Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cachelb

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cachelb/cachelb/internal"
)

const defaultConnectionsPerServer = 4

// Option configures a Pool.
type Option interface {
	apply(*poolOptions)
}

// WithConnectionsPerServer sets how many connection slots each server
// address gets. Every call picks one of a server's slots at random, so
// with n slots the pool keeps up to n concurrent connections per server
// and spreads callers across them. The default is 4.
func WithConnectionsPerServer(n int) Option {
	return optionFunc(func(opts *poolOptions) {
		opts.connsPerServer = n
	})
}

// WithLocality restricts the pool to provider addresses in the given
// locality (e.g. an availability zone). The filter is fixed for the
// pool's lifetime.
func WithLocality(zone string) Option {
	return optionFunc(func(opts *poolOptions) {
		opts.locality = zone
	})
}

// WithRefreshInterval sets how long a provider snapshot is considered
// fresh. Within the interval the pool skips asking the provider again
// at the top of each call. Zero (the default) means every call asks;
// that is the right choice for providers that answer from local state.
func WithRefreshInterval(interval time.Duration) Option {
	return optionFunc(func(opts *poolOptions) {
		opts.refreshInterval = interval
	})
}

// WithLogger sets the logger used for connection lifecycle and address
// set events. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(opts *poolOptions) {
		opts.logger = logger
	})
}

// WithRootContext sets the context under which the pool runs connection
// attempts. Attempts deliberately do not run under an individual
// caller's context: several callers can be waiting on one attempt, and
// one of them being cancelled must not abort it for the rest. If not
// set, [context.Background] is used. Cancelling the root context aborts
// all in-flight attempts; it should only be cancelled once the pool is
// no longer in use.
func WithRootContext(ctx context.Context) Option {
	return optionFunc(func(opts *poolOptions) {
		opts.rootCtx = ctx
	})
}

// RandSource yields uniform random ints in [0, n). It is consulted for
// slot (and unkeyed server) selection, which is on the hot path, so
// implementations should not serialize concurrent callers on one lock.
// *math/rand/v2.Rand satisfies this interface, which is convenient for
// deterministic selection in tests — though a bare *rand.Rand is not
// safe for concurrent use.
type RandSource interface {
	IntN(n int) int
}

// WithRandSource replaces the random source used for slot selection.
// The default draws from pooled per-caller generators and never takes a
// shared lock.
func WithRandSource(src RandSource) Option {
	return optionFunc(func(opts *poolOptions) {
		opts.rand = src
	})
}

type optionFunc func(*poolOptions)

func (f optionFunc) apply(opts *poolOptions) {
	f(opts)
}

type poolOptions struct {
	connsPerServer  int
	locality        string
	refreshInterval time.Duration
	logger          *zap.Logger
	rootCtx         context.Context
	rand            RandSource
}

func (opts *poolOptions) applyDefaults() {
	if opts.connsPerServer == 0 {
		opts.connsPerServer = defaultConnectionsPerServer
	}
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
	if opts.rootCtx == nil {
		opts.rootCtx = context.Background()
	}
	if opts.rand == nil {
		opts.rand = newPooledRand()
	}
}

// pooledRand is the default RandSource. Generators are pooled so
// concurrent callers each draw from their own seeded *rand.Rand instead
// of contending on a shared one.
type pooledRand struct {
	pool sync.Pool
}

func newPooledRand() *pooledRand {
	return &pooledRand{
		pool: sync.Pool{
			New: func() any {
				return internal.NewRand()
			},
		},
	}
}

func (p *pooledRand) IntN(n int) int {
	rnd := p.pool.Get().(*rand.Rand)
	value := rnd.IntN(n)
	p.pool.Put(rnd)
	return value
}
