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

package connmanager

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"

	"github.com/cachelb/cachelb/conn"
	"github.com/cachelb/cachelb/resolver"
)

const defaultConnectTimeout = 30 * time.Second

// NewGRPC returns a Manager that dials a gRPC channel per connection.
// Each Connect blocks until the channel reaches the ready state or the
// connect timeout elapses, so a returned handle is immediately usable.
//
// Transport security is not configured here; pass the appropriate
// credentials (or an insecure option) via WithDialOptions.
func NewGRPC(opts ...GRPCOption) Manager {
	mgr := &grpcManager{connectTimeout: defaultConnectTimeout}
	for _, opt := range opts {
		opt.apply(mgr)
	}
	return mgr
}

// GRPCOption configures the Manager returned by NewGRPC.
type GRPCOption interface {
	apply(*grpcManager)
}

// WithDialOptions appends gRPC dial options used for every connection.
func WithDialOptions(dialOpts ...grpc.DialOption) GRPCOption {
	return grpcOptionFunc(func(mgr *grpcManager) {
		mgr.dialOpts = append(mgr.dialOpts, dialOpts...)
	})
}

// WithConnectTimeout bounds how long a single connection attempt may
// take. If zero, attempts are bounded only by the context given to
// Connect. The default is 30 seconds.
func WithConnectTimeout(timeout time.Duration) GRPCOption {
	return grpcOptionFunc(func(mgr *grpcManager) {
		mgr.connectTimeout = timeout
	})
}

type grpcOptionFunc func(*grpcManager)

func (f grpcOptionFunc) apply(mgr *grpcManager) {
	f(mgr)
}

type grpcManager struct {
	dialOpts       []grpc.DialOption
	connectTimeout time.Duration
}

func (m *grpcManager) Connect(ctx context.Context, addr resolver.Address) (conn.Handle, error) {
	if m.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.connectTimeout)
		defer cancel()
	}
	dialOpts := make([]grpc.DialOption, 0, len(m.dialOpts)+2)
	dialOpts = append(dialOpts, grpc.WithBlock(), grpc.WithReturnConnectionError())
	dialOpts = append(dialOpts, m.dialOpts...)
	clientConn, err := grpc.DialContext(ctx, addr.HostPort, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &GRPCHandle{clientConn: clientConn}, nil
}

// GRPCHandle is the conn.Handle produced by the gRPC manager. It also
// implements [grpc.ClientConnInterface], so generated client stubs can
// be constructed directly on a handle obtained from the pool.
type GRPCHandle struct {
	clientConn *grpc.ClientConn
}

// IsAlive reports whether the channel is still usable. A channel that
// has shut down or fallen into transient failure is considered dead;
// the pool will replace it rather than hand it out again.
func (h *GRPCHandle) IsAlive() bool {
	switch h.clientConn.GetState() {
	case connectivity.Shutdown, connectivity.TransientFailure:
		return false
	default:
		return true
	}
}

// Close shuts down the channel.
func (h *GRPCHandle) Close() error {
	return h.clientConn.Close()
}

// Invoke performs a unary RPC on the channel.
func (h *GRPCHandle) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	return h.clientConn.Invoke(ctx, method, args, reply, opts...)
}

// NewStream begins a streaming RPC on the channel.
func (h *GRPCHandle) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return h.clientConn.NewStream(ctx, desc, method, opts...)
}
