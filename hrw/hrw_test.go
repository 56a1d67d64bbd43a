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

package hrw_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachelb/cachelb/hrw"
	"github.com/cachelb/cachelb/resolver"
)

func testAddrs(n int) []resolver.Address {
	addrs := make([]resolver.Address, n)
	for i := range addrs {
		addrs[i] = resolver.Address{HostPort: fmt.Sprintf("10.0.0.%d:6379", i+1)}
	}
	return addrs
}

func TestTopDeterministic(t *testing.T) {
	t.Parallel()

	addrs := testAddrs(8)
	key := []byte("user:42")
	first, ok := hrw.Top(key, addrs)
	require.True(t, ok)
	for i := 0; i < 1000; i++ {
		top, ok := hrw.Top(key, addrs)
		require.True(t, ok)
		assert.Equal(t, first, top)
	}
}

func TestTopIndependentOfInputOrder(t *testing.T) {
	t.Parallel()

	addrs := testAddrs(8)
	reversed := make([]resolver.Address, len(addrs))
	for i, addr := range addrs {
		reversed[len(addrs)-1-i] = addr
	}
	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("key:%d", i))
		forward, ok := hrw.Top(key, addrs)
		require.True(t, ok)
		backward, ok := hrw.Top(key, reversed)
		require.True(t, ok)
		assert.Equal(t, forward, backward)
	}
}

func TestTopEmpty(t *testing.T) {
	t.Parallel()

	_, ok := hrw.Top([]byte("anything"), nil)
	assert.False(t, ok)
}

func TestMinimalDisruption(t *testing.T) {
	t.Parallel()

	addrs := testAddrs(8)
	const numKeys = 2000

	before := make(map[string]resolver.Address, numKeys)
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("key:%d", i)
		top, ok := hrw.Top([]byte(key), addrs)
		require.True(t, ok)
		before[key] = top
	}

	removed := addrs[3]
	remaining := append(append([]resolver.Address{}, addrs[:3]...), addrs[4:]...)

	moved := 0
	for key, prior := range before {
		top, ok := hrw.Top([]byte(key), remaining)
		require.True(t, ok)
		if prior == removed {
			moved++
			assert.NotEqual(t, removed, top)
		} else {
			// Keys that weren't placed on the removed address must not move.
			assert.Equal(t, prior, top, "key %s moved from %s to %s", key, prior.HostPort, top.HostPort)
		}
	}
	// Sanity: the removed address did own some share of the keyspace.
	assert.NotZero(t, moved)
}

func TestRankOrdersAllAddresses(t *testing.T) {
	t.Parallel()

	addrs := testAddrs(8)
	key := []byte("user:42")
	ranked := hrw.Rank(key, addrs)
	require.Len(t, ranked, len(addrs))

	top, ok := hrw.Top(key, addrs)
	require.True(t, ok)
	assert.Equal(t, top, ranked[0].Addr)

	seen := map[string]struct{}{}
	for i, entry := range ranked {
		seen[entry.Addr.HostPort] = struct{}{}
		if i > 0 {
			assert.GreaterOrEqual(t, ranked[i-1].Score, entry.Score)
		}
		assert.Equal(t, hrw.Score(key, hrw.Seed(entry.Addr)), entry.Score)
	}
	assert.Len(t, seen, len(addrs))
}

func TestDistribution(t *testing.T) {
	t.Parallel()

	addrs := testAddrs(8)
	const numKeys = 8000
	counts := map[string]int{}
	for i := 0; i < numKeys; i++ {
		top, ok := hrw.Top([]byte(fmt.Sprintf("key:%d", i)), addrs)
		require.True(t, ok)
		counts[top.HostPort]++
	}
	require.Len(t, counts, len(addrs))
	for hostPort, count := range counts {
		// Loose bound: every address gets a meaningful share.
		assert.Greater(t, count, numKeys/len(addrs)/4, "address %s starved", hostPort)
	}
}

func BenchmarkTop(b *testing.B) {
	addrs := testAddrs(16)
	key := []byte("user:42:profile")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = hrw.Top(key, addrs)
	}
}
