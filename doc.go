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

// Package cachelb provides a client-side connection pool that routes
// cache operations to backend servers by consistent hashing. It is
// meant to sit under request-sending code in a cache client: the caller
// asks for a connection keyed by the routing key of an operation (or
// for a connection to any server) and sends its RPCs on the returned
// handle.
//
// Placement uses highest-random-weight (rendezvous) hashing, so a key
// maps to the same server for as long as that server is in the address
// set, and a membership change only moves the keys whose server was
// added or removed. The address set comes from a [resolver.Provider]
// and is re-checked at the top of every pool operation; no background
// task is involved.
//
// Each server owns a fixed number of connection slots. Connections are
// established lazily by a [connmanager.Manager]: the first caller to
// find a slot empty starts the connect, concurrent callers join the
// same in-flight attempt, and a connection found dead on lookup is
// replaced on the next call that touches its slot. The pool never
// retries a failed attempt itself — the error is surfaced and the next
// call starts fresh — so retry policy stays with the request-sending
// layer, which knows whether an operation is safe to repeat.
//
// To create a pool use [New] with a provider and a manager;
// [connmanager.NewGRPC] dials gRPC channels and is the usual choice.
package cachelb
