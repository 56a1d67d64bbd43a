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
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cachelb/cachelb/conn"
	"github.com/cachelb/cachelb/connmanager"
	"github.com/cachelb/cachelb/hrw"
	"github.com/cachelb/cachelb/internal"
	"github.com/cachelb/cachelb/resolver"
)

// Pool routes callers to backend connections. Placement is by
// highest-random-weight hashing of the routing key over the provider's
// current address set, so a given key always lands on the same server
// while that server is in the set. Connections are established lazily:
// each server owns a fixed array of slots, and the first caller to find
// a slot empty starts the connect while concurrent callers join the
// same in-flight attempt.
type Pool struct {
	provider resolver.Provider
	manager  connmanager.Manager

	connsPerServer  int
	locality        string
	refreshInterval time.Duration
	logger          *zap.Logger
	rand            RandSource
	clock           internal.Clock

	// ctx is the root context for connection attempts; see
	// WithRootContext for why attempts do not run under caller contexts.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	servers     map[string]*server
	addrs       []resolver.Address
	lastRefresh time.Time
	closed      bool

	stats poolStats
}

type server struct {
	addr  resolver.Address
	slots []*slot
}

func newServer(addr resolver.Address, slotCount int) *server {
	srv := &server{
		addr:  addr,
		slots: make([]*slot, slotCount),
	}
	for i := range srv.slots {
		srv.slots[i] = &slot{addr: addr}
	}
	return srv
}

type slotState int

const (
	stateDisconnected slotState = iota
	stateConnecting
	stateConnected
)

// slot is one independently lockable connection cell. Its lock is only
// ever held across state inspection and transition, never across a wait
// or a manager call.
type slot struct {
	addr resolver.Address

	mu      sync.Mutex
	state   slotState
	attempt *connectAttempt // set iff state == stateConnecting
	handle  conn.Handle     // set iff state == stateConnected
}

// connectAttempt is a single in-flight connect shared by every caller
// that observed the slot connecting. The result fields are written once
// by the connecting goroutine before done is closed; waiters read them
// only after done is closed.
type connectAttempt struct {
	done   chan struct{}
	handle conn.Handle
	err    error
}

// New creates a pool over the given address provider and connection
// manager. The provider is consulted immediately to seed the address
// set and again at the top of every pool operation, so membership
// changes are picked up without any background task.
func New(provider resolver.Provider, manager connmanager.Manager, opts ...Option) (*Pool, error) {
	if provider == nil {
		return nil, errors.New("cachelb: provider must not be nil")
	}
	if manager == nil {
		return nil, errors.New("cachelb: manager must not be nil")
	}
	var options poolOptions
	for _, opt := range opts {
		opt.apply(&options)
	}
	options.applyDefaults()
	if options.connsPerServer < 0 {
		return nil, errors.New("cachelb: connections per server must not be negative")
	}
	ctx, cancel := context.WithCancel(options.rootCtx)
	pool := &Pool{
		provider:        provider,
		manager:         manager,
		connsPerServer:  options.connsPerServer,
		locality:        options.locality,
		refreshInterval: options.refreshInterval,
		logger:          options.logger,
		rand:            options.rand,
		clock:           internal.NewRealClock(),
		ctx:             ctx,
		cancel:          cancel,
		servers:         map[string]*server{},
	}
	if err := pool.refresh(); err != nil {
		cancel()
		return nil, err
	}
	return pool, nil
}

// ConnectionForKey returns a connection to the server the given routing
// key places on. The same key selects the same server for as long as
// that server remains in the provider's address set. Among the server's
// slots one is chosen at random; an existing live connection is
// returned directly, otherwise the caller starts or joins a single
// connect attempt for that slot.
func (p *Pool) ConnectionForKey(ctx context.Context, key []byte) (conn.Handle, error) {
	if err := p.refresh(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrClosed
	}
	top, ok := hrw.Top(key, p.addrs)
	if !ok {
		p.mu.RUnlock()
		return nil, ErrNoAddresses
	}
	srv := p.servers[top.HostPort]
	cell := srv.slots[p.rand.IntN(len(srv.slots))]
	p.mu.RUnlock()
	return p.getOrConnect(ctx, cell)
}

// Connection returns a connection to a uniformly random server. Use it
// for operations that are not keyed to any particular server.
func (p *Pool) Connection(ctx context.Context) (conn.Handle, error) {
	if err := p.refresh(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrClosed
	}
	if len(p.addrs) == 0 {
		p.mu.RUnlock()
		return nil, ErrNoAddresses
	}
	addr := p.addrs[p.rand.IntN(len(p.addrs))]
	srv := p.servers[addr.HostPort]
	cell := srv.slots[p.rand.IntN(len(srv.slots))]
	p.mu.RUnlock()
	return p.getOrConnect(ctx, cell)
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	return p.stats.snapshot()
}

// Close tears down the pool: every stored connection is closed and all
// in-flight attempts are aborted. Handles previously returned to
// callers are closed too, since the pool owns the stored reference.
// Closing twice is a no-op.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	servers := p.servers
	p.servers = nil
	p.addrs = nil
	p.mu.Unlock()

	p.cancel()

	var err error
	for _, srv := range servers {
		for _, cell := range srv.slots {
			cell.mu.Lock()
			handle := cell.handle
			cell.state = stateDisconnected
			cell.attempt = nil
			cell.handle = nil
			cell.mu.Unlock()
			if handle != nil {
				err = multierr.Append(err, handle.Close())
			}
		}
	}
	return err
}

// refresh synchronizes the address map with the provider's current
// snapshot. On the hot path this is a provider call plus a membership
// compare under the read lock; the write lock is only taken when the
// set actually changed (or a freshness stamp needs updating).
func (p *Pool) refresh() error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	if p.refreshInterval > 0 && p.clock.Since(p.lastRefresh) < p.refreshInterval {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	ordered, byHostPort := dedupe(p.provider.Addresses(p.locality))

	p.mu.RLock()
	same := p.membershipEqualLocked(byHostPort)
	p.mu.RUnlock()
	if same && p.refreshInterval == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.lastRefresh = p.clock.Now()
	if p.membershipEqualLocked(byHostPort) {
		return nil
	}

	var added, removed int
	next := make(map[string]*server, len(ordered))
	for _, addr := range ordered {
		if existing, ok := p.servers[addr.HostPort]; ok {
			next[addr.HostPort] = existing
			continue
		}
		next[addr.HostPort] = newServer(addr, p.connsPerServer)
		added++
	}
	for hostPort := range p.servers {
		if _, ok := next[hostPort]; !ok {
			// The server's slots are dropped without closing their
			// handles: callers that already hold one keep a usable
			// connection until its transport fails.
			removed++
		}
	}
	p.servers = next
	p.addrs = ordered
	p.stats.refreshes.Inc()
	p.logger.Debug("address set changed",
		zap.Int("added", added),
		zap.Int("removed", removed),
		zap.Int("total", len(ordered)),
	)
	return nil
}

func dedupe(addrs []resolver.Address) ([]resolver.Address, map[string]resolver.Address) {
	ordered := make([]resolver.Address, 0, len(addrs))
	byHostPort := make(map[string]resolver.Address, len(addrs))
	for _, addr := range addrs {
		if _, ok := byHostPort[addr.HostPort]; ok {
			continue
		}
		byHostPort[addr.HostPort] = addr
		ordered = append(ordered, addr)
	}
	return ordered, byHostPort
}

func (p *Pool) membershipEqualLocked(byHostPort map[string]resolver.Address) bool {
	if len(byHostPort) != len(p.servers) {
		return false
	}
	for hostPort := range byHostPort {
		if _, ok := p.servers[hostPort]; !ok {
			return false
		}
	}
	return true
}

// getOrConnect implements the slot lifecycle. The loop holds the slot
// lock only while inspecting and transitioning state; waiting on an
// attempt happens outside it.
func (p *Pool) getOrConnect(ctx context.Context, cell *slot) (conn.Handle, error) {
	for {
		cell.mu.Lock()
		switch cell.state {
		case stateConnected:
			if cell.handle.IsAlive() {
				handle := cell.handle
				cell.mu.Unlock()
				return handle, nil
			}
			dead := cell.handle
			cell.state = stateDisconnected
			cell.handle = nil
			cell.mu.Unlock()
			p.stats.evictions.Inc()
			p.logger.Debug("evicted dead connection", zap.String("address", cell.addr.HostPort))
			_ = dead.Close()
			// Re-evaluate; this caller will start or join a reconnect.

		case stateConnecting:
			attempt := cell.attempt
			cell.mu.Unlock()
			p.stats.attemptsJoined.Inc()
			return p.awaitAttempt(ctx, cell, attempt)

		default: // stateDisconnected
			attempt := &connectAttempt{done: make(chan struct{})}
			cell.state = stateConnecting
			cell.attempt = attempt
			cell.mu.Unlock()
			p.stats.connectsStarted.Inc()
			go p.runConnect(cell.addr, attempt)
			// Loop back so the attempt just stored is picked up through
			// the same connecting path as everyone else's.
		}
	}
}

// runConnect resolves a shared attempt. It runs under the pool's root
// context: a waiter being cancelled must not abort the attempt for the
// other waiters.
func (p *Pool) runConnect(addr resolver.Address, attempt *connectAttempt) {
	handle, err := p.manager.Connect(p.ctx, addr)
	if err != nil {
		p.stats.connectsFailed.Inc()
		p.logger.Warn("connect failed",
			zap.String("address", addr.HostPort),
			zap.Error(err),
		)
	}
	attempt.handle = handle
	attempt.err = err
	close(attempt.done)
}

func (p *Pool) awaitAttempt(ctx context.Context, cell *slot, attempt *connectAttempt) (conn.Handle, error) {
	select {
	case <-ctx.Done():
		// The attempt keeps running for its other waiters; only this
		// caller gives up.
		return nil, ctx.Err()
	case <-attempt.done:
	}
	if attempt.err != nil {
		cell.mu.Lock()
		// Reset only if the slot still references this failed attempt.
		// A newer attempt (or a winner's reconciled connection) may have
		// replaced it while we were waiting, and must not be discarded.
		if cell.state == stateConnecting && cell.attempt == attempt {
			cell.state = stateDisconnected
			cell.attempt = nil
		}
		cell.mu.Unlock()
		return nil, &ConnectError{Addr: cell.addr, Err: attempt.err}
	}
	return p.adoptConnection(cell, attempt.handle), nil
}

// adoptConnection reconciles a successfully connected handle with the
// slot's current state. Slots can independently cycle back through
// disconnected and connecting while an attempt resolves, so several
// live handles can arrive for one slot; exactly one is stored, and no
// racer is left without a usable handle.
func (p *Pool) adoptConnection(cell *slot, handle conn.Handle) conn.Handle {
	cell.mu.Lock()
	switch cell.state {
	case stateConnecting:
		// This handle wins, whichever attempt produced it.
		cell.state = stateConnected
		cell.attempt = nil
		cell.handle = handle
		cell.mu.Unlock()
		return handle

	case stateConnected:
		if cell.handle.IsAlive() {
			// Another handle already won; discard this one.
			existing := cell.handle
			cell.mu.Unlock()
			if existing != handle {
				_ = handle.Close()
			}
			return existing
		}
		dead := cell.handle
		cell.handle = handle
		cell.mu.Unlock()
		if dead != handle {
			_ = dead.Close()
		}
		return handle

	default: // stateDisconnected: raced with an eviction; adopt anyway.
		cell.state = stateConnected
		cell.attempt = nil
		cell.handle = handle
		cell.mu.Unlock()
		return handle
	}
}
