// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package framing

import "time"

// HeaderLengthFramer extracts frames shaped <header><1 length byte><payload>
// where the header pattern may contain wildcards and the length byte counts
// payload bytes (0-255). Emitted frames carry the whole wire shape, header
// and length byte included.
//
// Bytes preceding a detected header are discarded as garbage. Bytes with no
// detected header are retained (bounded by maxLen) until a header appears
// or the idle check clears them.
type HeaderLengthFramer struct {
	header       Pattern
	buf          *Buffer
	clearTimeout time.Duration
	sawData      bool
}

var _ IdleChecker = (*HeaderLengthFramer)(nil)

// NewHeaderLengthFramer creates a header+length framer. The pattern must be
// non-empty and may contain wildcard positions.
func NewHeaderLengthFramer(header Pattern, opts ...Option) (*HeaderLengthFramer, error) {
	o := buildOptions(opts)
	if len(header) == 0 {
		return nil, ErrEmptyPattern
	}
	if o.maxLen <= 0 {
		return nil, ErrInvalidMaxLen
	}
	if o.clearTimeout <= 0 {
		return nil, ErrInvalidClearTimeout
	}
	return &HeaderLengthFramer{
		header:       header,
		buf:          NewBuffer(o.maxLen),
		clearTimeout: o.clearTimeout,
	}, nil
}

// OnChunk appends chunk to the accumulation buffer and extracts every frame
// completed by it. Any chunk arrival, even an empty one, counts as activity
// for the idle check.
func (f *HeaderLengthFramer) OnChunk(chunk []byte) [][]byte {
	f.sawData = true
	f.buf.Append(chunk)

	var frames [][]byte
	for {
		idx := f.header.Find(f.buf.Bytes())
		if idx < 0 {
			break
		}
		if idx > 0 {
			f.buf.DropPrefix(idx)
		}
		if f.buf.Len() < len(f.header)+1 {
			break // length byte pending
		}
		n := int(f.buf.Bytes()[len(f.header)])
		total := len(f.header) + 1 + n
		if f.buf.Len() < total {
			break // payload pending
		}
		frames = append(frames, f.buf.TakePrefix(total))
	}
	return frames
}

// Tick runs one idle check: when no chunk arrived since the previous tick
// and bytes are buffered, the buffered partial frame is abandoned without
// notice. The arrival flag resets on every tick regardless of outcome.
func (f *HeaderLengthFramer) Tick() {
	quiet := !f.sawData
	f.sawData = false
	if quiet && f.buf.Len() > 0 {
		f.buf.Reset()
	}
}

// IdleInterval returns the configured clearTimeout.
func (f *HeaderLengthFramer) IdleInterval() time.Duration { return f.clearTimeout }

// Reset discards accumulated bytes and the activity flag.
func (f *HeaderLengthFramer) Reset() {
	f.buf.Reset()
	f.sawData = false
}
