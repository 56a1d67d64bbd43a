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

import (
	"errors"
	"fmt"

	"github.com/cachelb/cachelb/resolver"
)

var (
	// ErrNoAddresses is returned when the address provider's current set
	// is empty. It is fatal for the call, not for the pool: once the
	// provider reports addresses again, subsequent calls succeed.
	ErrNoAddresses = errors.New("cachelb: no addresses available")

	// ErrClosed is returned by operations on a closed pool.
	ErrClosed = errors.New("cachelb: pool is closed")
)

// ConnectError reports a failed connection attempt. The manager's error
// is surfaced verbatim via Unwrap; the pool does not retry — the slot is
// reset so the caller's next call starts a fresh attempt.
type ConnectError struct {
	Addr resolver.Address
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("cachelb: connect to %s: %v", e.Addr.HostPort, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
