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

package resolver

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cachelb/cachelb/internal"
)

const dnsLookupTimeout = 5 * time.Second

// DNS is a Provider that resolves a DNS name to its current A/AAAA
// records. Lookups are cached for the configured TTL so that the pool's
// per-operation Addresses calls stay cheap; at most one caller per TTL
// expiry pays for a fresh lookup. If a lookup fails, the last good
// snapshot keeps being served, so a transient resolver outage never
// presents the pool with an empty address set.
//
// DNS has no locality information; the locality argument is ignored.
type DNS struct {
	host  string
	port  string
	ttl   time.Duration
	clock internal.Clock

	// lookup is swappable for tests.
	lookup func(ctx context.Context, host string) ([]string, error)

	mu      sync.Mutex
	cached  []Address
	fetched time.Time
}

// NewDNS returns a DNS provider for the given "host:port" target. The
// host part is re-resolved whenever the cached result is older than
// ttl; the port part is attached to every resolved address.
func NewDNS(hostPort string, ttl time.Duration) (*DNS, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, err
	}
	return &DNS{
		host:  host,
		port:  port,
		ttl:   ttl,
		clock: internal.NewRealClock(),
		lookup: func(ctx context.Context, host string) ([]string, error) {
			return net.DefaultResolver.LookupHost(ctx, host)
		},
	}, nil
}

// Addresses returns the resolved addresses, refreshing the cache first
// if it is older than the TTL.
func (d *DNS) Addresses(_ string) []Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached != nil && d.clock.Since(d.fetched) < d.ttl {
		return d.snapshotLocked()
	}
	ctx, cancel := context.WithTimeout(context.Background(), dnsLookupTimeout)
	defer cancel()
	hosts, err := d.lookup(ctx, d.host)
	if err != nil {
		// Keep serving the previous snapshot; retry on the next call.
		return d.snapshotLocked()
	}
	addrs := make([]Address, len(hosts))
	for i, host := range hosts {
		addrs[i] = Address{HostPort: net.JoinHostPort(host, d.port)}
	}
	d.cached = addrs
	d.fetched = d.clock.Now()
	return d.snapshotLocked()
}

func (d *DNS) snapshotLocked() []Address {
	result := make([]Address, len(d.cached))
	copy(result, d.cached)
	return result
}
