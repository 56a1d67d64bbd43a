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

// Package hrw implements highest-random-weight (rendezvous) hashing
// over backend addresses. Each address is scored for a key by hashing
// the key together with the address's placement seed; the
// highest-scoring address wins. Because every (key, address) pair is
// scored independently, adding or removing an address only moves the
// keys whose winner was the added or removed address — the rest of the
// keyspace is undisturbed, which is what makes this preferable to
// modulo hashing for routing to a changing server set.
package hrw

import (
	"encoding/binary"
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/cachelb/cachelb/resolver"
)

// Seed returns the placement seed for an address. Seeds depend only on
// the endpoint identity, so they are stable across processes and across
// membership changes.
func Seed(addr resolver.Address) uint64 {
	return murmur3.Sum64([]byte(addr.HostPort))
}

// Score ranks an address (given by its placement seed) for a key.
// Identical (key, seed) inputs always produce identical scores.
func Score(key []byte, seed uint64) uint64 {
	hash := murmur3.New64()
	_, _ = hash.Write(key)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	_, _ = hash.Write(buf[:])
	return hash.Sum64()
}

// Top returns the highest-scoring address for key, or false if addrs is
// empty. Score ties (vanishingly unlikely for real address sets) are
// broken by seed so the result does not depend on input order.
func Top(key []byte, addrs []resolver.Address) (resolver.Address, bool) {
	if len(addrs) == 0 {
		return resolver.Address{}, false
	}
	best := addrs[0]
	bestSeed := Seed(best)
	bestScore := Score(key, bestSeed)
	for _, addr := range addrs[1:] {
		seed := Seed(addr)
		score := Score(key, seed)
		if score > bestScore || (score == bestScore && seed > bestSeed) {
			best, bestSeed, bestScore = addr, seed, score
		}
	}
	return best, true
}

// Ranked pairs an address with its score for some key.
type Ranked struct {
	Addr  resolver.Address
	Score uint64
}

// Rank returns every address ordered from highest to lowest score for
// key. The first element is the address Top would return. Callers that
// only need the winner should prefer Top, which does not allocate.
func Rank(key []byte, addrs []resolver.Address) []Ranked {
	ranked := make([]Ranked, len(addrs))
	for i, addr := range addrs {
		ranked[i] = Ranked{Addr: addr, Score: Score(key, Seed(addr))}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return Seed(ranked[i].Addr) > Seed(ranked[j].Addr)
	})
	return ranked
}
