// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package framing

// TerminatorFramer splits the stream on a terminator pattern: every match
// ends a frame. With the default strip policy the terminator bytes are
// excluded from emitted frames; WithKeepTerminator includes them.
//
// A buffer holding nothing beyond the terminator itself stays pending until
// more bytes arrive. Adjacent terminators emit empty frames.
type TerminatorFramer struct {
	term Pattern
	keep bool
	buf  *Buffer
}

// NewTerminatorFramer creates a terminator framer. The pattern must be
// non-empty and may contain wildcard positions.
func NewTerminatorFramer(term Pattern, opts ...Option) (*TerminatorFramer, error) {
	o := buildOptions(opts)
	if len(term) == 0 {
		return nil, ErrEmptyPattern
	}
	if o.maxLen <= 0 {
		return nil, ErrInvalidMaxLen
	}
	return &TerminatorFramer{
		term: term,
		keep: o.keepTerminator,
		buf:  NewBuffer(o.maxLen),
	}, nil
}

// OnChunk appends chunk to the accumulation buffer and extracts every frame
// completed by it, left to right.
func (f *TerminatorFramer) OnChunk(chunk []byte) [][]byte {
	f.buf.Append(chunk)

	var frames [][]byte
	for f.buf.Len() > len(f.term) {
		idx := f.term.Find(f.buf.Bytes())
		if idx < 0 {
			break
		}
		if f.keep {
			frames = append(frames, f.buf.TakePrefix(idx+len(f.term)))
		} else {
			frame := f.buf.TakePrefix(idx)
			f.buf.DropPrefix(len(f.term))
			frames = append(frames, frame)
		}
	}
	return frames
}

// Reset discards any partially accumulated frame.
func (f *TerminatorFramer) Reset() { f.buf.Reset() }
