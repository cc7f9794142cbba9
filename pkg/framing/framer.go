// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package framing

import (
	"errors"
	"time"
)

// Construction defaults.
const (
	DefaultMaxLen       = 1024
	DefaultClearTimeout = time.Second
)

// Configuration errors, rejected synchronously at construction. The framing
// algorithms themselves have no runtime error paths.
var (
	ErrEmptyPattern        = errors.New("framing: empty pattern")
	ErrInvalidMaxLen       = errors.New("framing: maxLen must be positive")
	ErrInvalidClearTimeout = errors.New("framing: clearTimeout must be positive")
)

// Framer incrementally splits a continuous byte stream into frames. A framer
// is a plain step function over its own accumulation state: feed it chunks,
// collect frames. It performs no scheduling, no fan-out, and no IO; bind it
// to a transport with the pipeline package.
//
// Framers are not safe for concurrent use. Chunk boundaries carry no
// meaning: a frame may span many chunks and one chunk may complete many
// frames.
type Framer interface {
	// OnChunk absorbs the next chunk and returns the complete frames it
	// unlocked, in stream order. The returned frames are independent
	// copies. An empty chunk is legal.
	OnChunk(chunk []byte) [][]byte

	// Reset discards all accumulated state.
	Reset()
}

// IdleChecker is implemented by framers with a periodic idle policy. The
// driver (pipeline) owns the ticker and calls Tick every IdleInterval; the
// framer itself never touches the clock, which keeps the policy testable.
type IdleChecker interface {
	Tick()
	IdleInterval() time.Duration
}

// Option adjusts framer construction. An option not understood by a framer
// kind is ignored: WithKeepTerminator means nothing to the header framer,
// WithClearTimeout nothing to the terminator framer.
type Option func(*options)

type options struct {
	maxLen         int
	keepTerminator bool
	clearTimeout   time.Duration
}

func buildOptions(opts []Option) options {
	o := options{
		maxLen:       DefaultMaxLen,
		clearTimeout: DefaultClearTimeout,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithMaxLen bounds the accumulation buffer to n bytes. When more bytes
// than n arrive without a frame boundary, the oldest are silently dropped.
// Default 1024.
func WithMaxLen(n int) Option {
	return func(o *options) { o.maxLen = n }
}

// WithKeepTerminator makes the terminator framer include the terminator
// bytes in emitted frames. By default they are stripped.
func WithKeepTerminator() Option {
	return func(o *options) { o.keepTerminator = true }
}

// WithClearTimeout sets the header framer's idle check interval: when a
// full interval passes with no incoming data and the buffer is non-empty,
// the buffered partial frame is abandoned. Default 1s.
func WithClearTimeout(d time.Duration) Option {
	return func(o *options) { o.clearTimeout = d }
}
