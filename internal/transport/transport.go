// SPDX-License-Identifier: MIT
package transport

import (
	"errors"

	"tapeloop/internal/controller"
	"tapeloop/internal/protocol"
)

// ErrClosed is returned when sending on a closed transport.
var ErrClosed = errors.New("transport closed")

// Transport defines a generic interface for publishing looper state.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// SnapshotSource provides the state a Publisher fans out.
type SnapshotSource interface {
	Snapshot() controller.Snapshot
}

// Commander accepts actions from remote clients.
type Commander interface {
	Do(a protocol.Action) error
}
