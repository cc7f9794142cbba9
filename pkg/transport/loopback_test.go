// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoopbackEchoPreservesOrder(t *testing.T) {
	l := NewLoopback(0)
	defer l.Close()

	ctx := context.Background()
	for _, s := range []string{"one", "two", "three"} {
		if err := l.Write(ctx, []byte(s)); err != nil {
			t.Fatalf("Write(%q): %v", s, err)
		}
	}

	for _, want := range []string{"one", "two", "three"} {
		got := waitChunk(t, l.Chunks())
		if string(got) != want {
			t.Errorf("chunk = %q, want %q", got, want)
		}
	}
}

func TestLoopbackChunkIsIndependentCopy(t *testing.T) {
	l := NewLoopback(0)
	defer l.Close()

	buf := []byte("hello")
	if err := l.Write(context.Background(), buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf[0] = 'X'

	got := waitChunk(t, l.Chunks())
	if string(got) != "hello" {
		t.Errorf("chunk = %q, caller mutation leaked through", got)
	}
}

func TestLoopbackDelay(t *testing.T) {
	l := NewLoopback(50 * time.Millisecond)
	defer l.Close()

	start := time.Now()
	if err := l.Write(context.Background(), []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	waitChunk(t, l.Chunks())
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("echo arrived after %v, want >= 50ms", elapsed)
	}
}

func TestLoopbackInjectErrorKeepsStreaming(t *testing.T) {
	l := NewLoopback(0)
	defer l.Close()

	fault := errors.New("parity error")
	l.InjectError(fault)

	select {
	case err := <-l.Errors():
		if !errors.Is(err, fault) {
			t.Errorf("fault = %v, want %v", err, fault)
		}
	case <-time.After(time.Second):
		t.Fatal("fault was not delivered")
	}

	// The stream carries on after a mid-stream fault.
	if err := l.Write(context.Background(), []byte("still alive")); err != nil {
		t.Fatalf("Write after fault: %v", err)
	}
	if got := waitChunk(t, l.Chunks()); string(got) != "still alive" {
		t.Errorf("chunk = %q, want %q", got, "still alive")
	}
}

func TestLoopbackFailWithEndsStream(t *testing.T) {
	l := NewLoopback(0)

	terminal := errors.New("device dropped off the bus")
	l.FailWith(terminal)

	waitClosed(t, l.Chunks())
	if err := l.Err(); !errors.Is(err, terminal) {
		t.Errorf("Err = %v, want %v", err, terminal)
	}
}

func TestLoopbackCloseIsClean(t *testing.T) {
	l := NewLoopback(0)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	waitClosed(t, l.Chunks())
	if err := l.Err(); err != nil {
		t.Errorf("Err = %v, want nil after clean close", err)
	}
	if err := l.Write(context.Background(), []byte("x")); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Write after Close = %v, want ErrTransportClosed", err)
	}
}
