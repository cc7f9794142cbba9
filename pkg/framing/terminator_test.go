// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package framing

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func mustTerminator(t *testing.T, term Pattern, opts ...Option) *TerminatorFramer {
	t.Helper()
	f, err := NewTerminatorFramer(term, opts...)
	if err != nil {
		t.Fatalf("NewTerminatorFramer: %v", err)
	}
	return f
}

func TestTerminatorSplitAcrossChunks(t *testing.T) {
	f := mustTerminator(t, Bytes(0x0D, 0x0A))

	if frames := f.OnChunk([]byte("AB\r")); len(frames) != 0 {
		t.Fatalf("expected no frames after partial chunk, got %d", len(frames))
	}

	frames := f.OnChunk([]byte("\nCD\r\n"))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], []byte("AB")) {
		t.Errorf("frame 0 = %q, want %q", frames[0], "AB")
	}
	if !bytes.Equal(frames[1], []byte("CD")) {
		t.Errorf("frame 1 = %q, want %q", frames[1], "CD")
	}
}

func TestTerminatorBackToBackMessages(t *testing.T) {
	f := mustTerminator(t, Bytes('\n'))

	var input []byte
	want := []string{"one", "two", "three", "four"}
	for _, m := range want {
		input = append(input, m...)
		input = append(input, '\n')
	}

	frames := f.OnChunk(input)
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(frames))
	}
	for i, w := range want {
		if string(frames[i]) != w {
			t.Errorf("frame %d = %q, want %q", i, frames[i], w)
		}
	}
}

func TestTerminatorKeepTerminator(t *testing.T) {
	f := mustTerminator(t, Bytes(0x0D, 0x0A), WithKeepTerminator())

	frames := f.OnChunk([]byte("AB\r\nCD\r\n"))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], []byte("AB\r\n")) {
		t.Errorf("frame 0 = %q, want %q", frames[0], "AB\r\n")
	}
	if !bytes.Equal(frames[1], []byte("CD\r\n")) {
		t.Errorf("frame 1 = %q, want %q", frames[1], "CD\r\n")
	}
}

func TestTerminatorEverySplitPoint(t *testing.T) {
	// One framed message delivered as two chunks, cut at every position,
	// always yields exactly the one frame.
	wire := []byte("HELLO\r\n")
	for cut := 0; cut <= len(wire); cut++ {
		t.Run(fmt.Sprintf("cut=%d", cut), func(t *testing.T) {
			f := mustTerminator(t, Bytes(0x0D, 0x0A))
			var frames [][]byte
			frames = append(frames, f.OnChunk(wire[:cut])...)
			frames = append(frames, f.OnChunk(wire[cut:])...)
			if len(frames) != 1 {
				t.Fatalf("expected 1 frame, got %d", len(frames))
			}
			if !bytes.Equal(frames[0], []byte("HELLO")) {
				t.Errorf("frame = %q, want %q", frames[0], "HELLO")
			}
		})
	}
}

func TestTerminatorByteAtATime(t *testing.T) {
	f := mustTerminator(t, Bytes('\n'))
	var frames [][]byte
	for _, b := range []byte("ab\ncd\n") {
		frames = append(frames, f.OnChunk([]byte{b})...)
	}
	if len(frames) != 2 || string(frames[0]) != "ab" || string(frames[1]) != "cd" {
		t.Errorf("unexpected frames %q", frames)
	}
}

func TestTerminatorOnlyTerminatorStaysPending(t *testing.T) {
	// A buffer holding exactly the terminator emits nothing until more
	// bytes arrive; the deferred match then surfaces as an empty frame.
	f := mustTerminator(t, Bytes(0x0D, 0x0A))

	if frames := f.OnChunk([]byte("\r\n")); len(frames) != 0 {
		t.Fatalf("expected no frames for terminator-only buffer, got %d", len(frames))
	}

	frames := f.OnChunk([]byte("X\r\n"))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if len(frames[0]) != 0 {
		t.Errorf("frame 0 = %q, want empty", frames[0])
	}
	if !bytes.Equal(frames[1], []byte("X")) {
		t.Errorf("frame 1 = %q, want %q", frames[1], "X")
	}
}

func TestTerminatorAdjacentTerminatorsEmitEmptyFrame(t *testing.T) {
	f := mustTerminator(t, Bytes(0x0D, 0x0A))
	frames := f.OnChunk([]byte("A\r\n\r\nB\r\n"))
	want := []string{"A", "", "B"}
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(frames))
	}
	for i, w := range want {
		if string(frames[i]) != w {
			t.Errorf("frame %d = %q, want %q", i, frames[i], w)
		}
	}
}

func TestTerminatorWildcard(t *testing.T) {
	f := mustTerminator(t, Pattern{Exact(0xFF), Any()})
	frames := f.OnChunk([]byte{0x01, 0x02, 0xFF, 0x09, 0x03, 0x04})
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{0x01, 0x02}) {
		t.Errorf("frame = %v, want [1 2]", frames[0])
	}
}

func TestTerminatorNoTerminatorTruncatesQuietly(t *testing.T) {
	f := mustTerminator(t, Bytes(0xFF), WithMaxLen(4))
	if frames := f.OnChunk([]byte("abcdefghij")); len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}

	// The retained tail is the last 4 bytes; a terminator arriving now
	// still frames whatever survived.
	frames := f.OnChunk([]byte{0xFF})
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after terminator, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], []byte("hij")) {
		t.Errorf("frame = %q, want %q", frames[0], "hij")
	}
}

func TestTerminatorConstructionErrors(t *testing.T) {
	if _, err := NewTerminatorFramer(nil); !errors.Is(err, ErrEmptyPattern) {
		t.Errorf("empty pattern: expected ErrEmptyPattern, got %v", err)
	}
	if _, err := NewTerminatorFramer(Pattern{}); !errors.Is(err, ErrEmptyPattern) {
		t.Errorf("zero-length pattern: expected ErrEmptyPattern, got %v", err)
	}
	if _, err := NewTerminatorFramer(Bytes('\n'), WithMaxLen(0)); !errors.Is(err, ErrInvalidMaxLen) {
		t.Errorf("maxLen 0: expected ErrInvalidMaxLen, got %v", err)
	}
	if _, err := NewTerminatorFramer(Bytes('\n'), WithMaxLen(-5)); !errors.Is(err, ErrInvalidMaxLen) {
		t.Errorf("negative maxLen: expected ErrInvalidMaxLen, got %v", err)
	}
}

func TestTerminatorReset(t *testing.T) {
	f := mustTerminator(t, Bytes('\n'))
	f.OnChunk([]byte("partial"))
	f.Reset()

	frames := f.OnChunk([]byte("fresh\n"))
	if len(frames) != 1 || string(frames[0]) != "fresh" {
		t.Errorf("expected clean frame %q after Reset, got %q", "fresh", frames)
	}
}
