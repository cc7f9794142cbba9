// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package framing

import (
	"bytes"
	"testing"
)

func TestBufferAppendWithinBound(t *testing.T) {
	b := NewBuffer(16)
	if dropped := b.Append([]byte("hello")); dropped != 0 {
		t.Errorf("expected 0 dropped, got %d", dropped)
	}
	if b.Len() != 5 {
		t.Errorf("expected length 5, got %d", b.Len())
	}
	if !bytes.Equal(b.Bytes(), []byte("hello")) {
		t.Errorf("unexpected content %q", b.Bytes())
	}
}

func TestBufferDropsOldestOnOverflow(t *testing.T) {
	b := NewBuffer(4)
	dropped := b.Append([]byte("abcdefghij"))
	if dropped != 6 {
		t.Errorf("expected 6 dropped, got %d", dropped)
	}
	if !bytes.Equal(b.Bytes(), []byte("ghij")) {
		t.Errorf("expected last 4 bytes retained, got %q", b.Bytes())
	}
}

func TestBufferDropsOldestAcrossChunks(t *testing.T) {
	b := NewBuffer(4)
	b.Append([]byte("abc"))
	dropped := b.Append([]byte("def"))
	if dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", dropped)
	}
	if !bytes.Equal(b.Bytes(), []byte("cdef")) {
		t.Errorf("expected %q, got %q", "cdef", b.Bytes())
	}
}

func TestBufferTakePrefixIsIndependentCopy(t *testing.T) {
	b := NewBuffer(16)
	b.Append([]byte("frame-rest"))

	frame := b.TakePrefix(5)
	if !bytes.Equal(frame, []byte("frame")) {
		t.Fatalf("expected %q, got %q", "frame", frame)
	}
	if !bytes.Equal(b.Bytes(), []byte("-rest")) {
		t.Errorf("expected remainder %q, got %q", "-rest", b.Bytes())
	}

	// Later buffer mutations must not reach into an emitted frame.
	b.Append([]byte("XXXXXXXXXXXX"))
	b.Reset()
	b.Append([]byte("YYYYY"))
	if !bytes.Equal(frame, []byte("frame")) {
		t.Errorf("emitted frame was mutated: %q", frame)
	}
}

func TestBufferTakePrefixClamps(t *testing.T) {
	b := NewBuffer(16)
	b.Append([]byte("ab"))
	got := b.TakePrefix(10)
	if !bytes.Equal(got, []byte("ab")) {
		t.Errorf("expected clamped take %q, got %q", "ab", got)
	}
	if b.Len() != 0 {
		t.Errorf("expected empty buffer, got %d bytes", b.Len())
	}
}

func TestBufferDropPrefix(t *testing.T) {
	b := NewBuffer(16)
	b.Append([]byte("garbage99"))
	b.DropPrefix(7)
	if !bytes.Equal(b.Bytes(), []byte("99")) {
		t.Errorf("expected %q, got %q", "99", b.Bytes())
	}

	b.DropPrefix(10)
	if b.Len() != 0 {
		t.Errorf("expected empty buffer after over-drop, got %d bytes", b.Len())
	}
}

func TestBufferReset(t *testing.T) {
	b := NewBuffer(16)
	b.Append([]byte("partial"))
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("expected empty buffer, got %d bytes", b.Len())
	}
	b.Append([]byte("next"))
	if !bytes.Equal(b.Bytes(), []byte("next")) {
		t.Errorf("buffer unusable after Reset: %q", b.Bytes())
	}
}
