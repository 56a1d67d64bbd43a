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

// Package resolver supplies the set of candidate backend addresses that
// a pool routes to. Providers are pull-based: the pool asks for the
// current snapshot at the top of every operation, so implementations
// must answer cheaply, from local state, and keep any slow refresh work
// (DNS lookups, control-plane calls) off that path or behind a cache.
package resolver

import "sync"

// Address is a resolved backend endpoint. It is used as a map key, so
// two addresses are the same endpoint iff their HostPort values are
// equal.
type Address struct {
	// HostPort is the "host:port" pair of the endpoint.
	HostPort string

	// Zone optionally names the locality (e.g. availability zone) the
	// endpoint lives in. Providers use it to answer locality-filtered
	// queries; an empty Zone means the endpoint's locality is unknown.
	Zone string
}

// Provider supplies the current set of candidate backend addresses.
//
// When locality is non-empty, only addresses in that locality are
// returned. Providers that have no locality information are free to
// ignore the argument.
type Provider interface {
	Addresses(locality string) []Address
}

// Static is a Provider backed by a fixed address set that can be
// swapped at any time with Set. It is safe for concurrent use.
type Static struct {
	mu    sync.RWMutex
	addrs []Address
}

// NewStatic returns a Static provider holding the given addresses.
func NewStatic(addrs ...Address) *Static {
	s := &Static{}
	s.Set(addrs...)
	return s
}

// Set replaces the provider's address set.
func (s *Static) Set(addrs ...Address) {
	copied := make([]Address, len(addrs))
	copy(copied, addrs)
	s.mu.Lock()
	s.addrs = copied
	s.mu.Unlock()
}

// Addresses returns the current snapshot. With a non-empty locality,
// only addresses whose Zone matches are returned.
func (s *Static) Addresses(locality string) []Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Address, 0, len(s.addrs))
	for _, addr := range s.addrs {
		if locality != "" && addr.Zone != locality {
			continue
		}
		result = append(result, addr)
	}
	return result
}
