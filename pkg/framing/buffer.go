// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package framing

// Buffer accumulates incoming stream bytes for a single framer. It is
// bounded: when appending a chunk pushes the length past maxLen, the oldest
// bytes are discarded until the bound holds again. Overflow is silent data
// loss, never an error.
//
// A Buffer is owned by exactly one framer and is not safe for concurrent
// use; the pipeline serializes all access.
type Buffer struct {
	data   []byte
	maxLen int
}

// NewBuffer creates a buffer bounded to maxLen bytes.
func NewBuffer(maxLen int) *Buffer {
	return &Buffer{maxLen: maxLen}
}

// Append adds chunk to the end of the buffer, then enforces the bound once,
// dropping the oldest bytes first. Returns the number of bytes discarded.
func (b *Buffer) Append(chunk []byte) int {
	b.data = append(b.data, chunk...)
	if len(b.data) <= b.maxLen {
		return 0
	}
	dropped := len(b.data) - b.maxLen
	b.data = b.data[dropped:]
	return dropped
}

// TakePrefix removes the first n bytes and returns them as an independent
// copy. Emitted frames must never alias the live buffer. n is clamped to
// the buffered length.
func (b *Buffer) TakePrefix(n int) []byte {
	if n > len(b.data) {
		n = len(b.data)
	}
	out := make([]byte, n)
	copy(out, b.data[:n])
	b.data = b.data[n:]
	return out
}

// DropPrefix discards the first n bytes without copying them out. n is
// clamped to the buffered length.
func (b *Buffer) DropPrefix(n int) {
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	b.data = b.data[n:]
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the buffered bytes for scanning. The returned slice aliases
// internal storage and is invalidated by the next mutation.
func (b *Buffer) Bytes() []byte { return b.data }

// Reset discards all buffered bytes.
func (b *Buffer) Reset() { b.data = b.data[:0] }
