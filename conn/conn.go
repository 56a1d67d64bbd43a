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

// Package conn defines the client connection handle held in pool slots
// and handed out to callers. A handle is a *logical* connection to a
// single backend address; whatever physical resources back it are owned
// by the connection manager implementation that produced it.
package conn

// Handle is a live client connection. Handles are shared: the pool keeps
// one reference in a slot and returns the same value to every caller
// routed there, so implementations must be safe for concurrent use.
//
// A caller may keep using a handle after the pool has evicted or
// replaced it; the handle stays valid until its transport fails.
type Handle interface {
	// IsAlive reports whether the underlying transport is still usable.
	// It must be cheap and local: no network round trip. The pool calls
	// it on every lookup that touches the handle's slot.
	IsAlive() bool

	// Close tears down the underlying transport. The pool closes handles
	// it discards (dead connections and losers of connect races), so
	// Close may be called more than once and must tolerate that.
	Close() error
}
