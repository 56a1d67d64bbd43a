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

package connmanager_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cachelb/cachelb/connmanager"
	"github.com/cachelb/cachelb/resolver"
)

func TestGRPCConnectAndLiveness(t *testing.T) {
	t.Parallel()

	listener := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	go func() {
		_ = server.Serve(listener)
	}()
	defer server.Stop()

	manager := connmanager.NewGRPC(
		connmanager.WithDialOptions(
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return listener.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		),
		connmanager.WithConnectTimeout(5*time.Second),
	)

	handle, err := manager.Connect(context.Background(), resolver.Address{HostPort: "bufnet"})
	require.NoError(t, err)
	assert.True(t, handle.IsAlive())

	require.NoError(t, handle.Close())
	assert.False(t, handle.IsAlive())
}

func TestGRPCConnectTimeout(t *testing.T) {
	t.Parallel()

	manager := connmanager.NewGRPC(
		connmanager.WithDialOptions(
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				// Never completes; the connect timeout must bound the attempt.
				<-ctx.Done()
				return nil, ctx.Err()
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		),
		connmanager.WithConnectTimeout(100*time.Millisecond),
	)

	start := time.Now()
	_, err := manager.Connect(context.Background(), resolver.Address{HostPort: "unreachable"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
