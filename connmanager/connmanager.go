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

// Package connmanager establishes transport-level connections for a
// pool. It is the pool's only network I/O boundary: the pool decides
// when and to which address a connection is needed, the manager decides
// how one is made. The default implementation dials gRPC channels; see
// NewGRPC.
package connmanager

import (
	"context"

	"github.com/cachelb/cachelb/conn"
	"github.com/cachelb/cachelb/resolver"
)

// Manager establishes connections to backend addresses.
type Manager interface {
	// Connect establishes one connection to addr, blocking until the
	// transport is usable or the attempt fails. The given context bounds
	// the attempt; it is the pool's root context, not an individual
	// caller's, so one caller giving up never aborts the attempt for
	// the others waiting on it.
	Connect(ctx context.Context, addr resolver.Address) (conn.Handle, error)
}

// ManagerFunc adapts a function to the Manager interface.
type ManagerFunc func(ctx context.Context, addr resolver.Address) (conn.Handle, error)

func (f ManagerFunc) Connect(ctx context.Context, addr resolver.Address) (conn.Handle, error) {
	return f(ctx, addr)
}
