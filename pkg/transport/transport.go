// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package transport

import (
	"context"
	"errors"
)

// ErrTransportClosed is returned by Write after Close, or when the
// transport tears down while a write is waiting.
var ErrTransportClosed = errors.New("transport: closed")

// Transport is a bidirectional byte stream with no framing of its own.
// Chunk boundaries carry no meaning; a framer upstream reassembles them.
type Transport interface {
	// Write sends p to the remote end. It honors ctx cancellation where
	// the underlying device supports deadlines.
	Write(ctx context.Context, p []byte) error

	// Chunks returns the inbound byte stream. Each element is an
	// independently owned slice. The channel is closed when the stream
	// ends, whether by Close, by the remote end, or by a terminal fault.
	Chunks() <-chan []byte

	// Errors reports mid-stream faults that do not end the stream,
	// such as a device overrun. Chunks keeps delivering afterward.
	Errors() <-chan error

	// Err returns the terminal error once Chunks has closed.
	// A clean shutdown reports nil.
	Err() error

	// Close tears down the transport. Safe to call more than once.
	Close() error
}
