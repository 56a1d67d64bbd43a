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

import "go.uber.org/atomic"

// Stats is a snapshot of the pool's counters.
type Stats struct {
	// ConnectsStarted counts connection attempts handed to the manager.
	// Concurrent callers hitting the same empty slot share one attempt,
	// so this counts establishment cycles, not callers.
	ConnectsStarted int64
	// ConnectsFailed counts attempts the manager reported as failed.
	ConnectsFailed int64
	// AttemptsJoined counts callers that waited on an in-flight attempt
	// (including the caller that started it).
	AttemptsJoined int64
	// Evictions counts stored connections dropped because they were
	// found dead on lookup.
	Evictions int64
	// Refreshes counts address set changes applied from the provider.
	Refreshes int64
}

type poolStats struct {
	connectsStarted atomic.Int64
	connectsFailed  atomic.Int64
	attemptsJoined  atomic.Int64
	evictions       atomic.Int64
	refreshes       atomic.Int64
}

func (s *poolStats) snapshot() Stats {
	return Stats{
		ConnectsStarted: s.connectsStarted.Load(),
		ConnectsFailed:  s.connectsFailed.Load(),
		AttemptsJoined:  s.attemptsJoined.Load(),
		Evictions:       s.evictions.Load(),
		Refreshes:       s.refreshes.Load(),
	}
}
