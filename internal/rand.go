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

package internal

import (
	"hash/maphash"
	"math/rand/v2"
)

// NewRand returns a seeded *rand.Rand. Seeds are drawn from the
// "hash/maphash" package, which taps the runtime's per-thread random
// state without locking, so this can be called from hot paths without
// contending on a shared source.
//
// The returned value itself is not safe for concurrent use; callers
// that need one per goroutine should pool them.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(randomSeed(), randomSeed()))
}

func randomSeed() uint64 {
	var hash maphash.Hash
	return hash.Sum64()
}
