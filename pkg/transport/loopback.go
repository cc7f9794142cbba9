// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package transport

import (
	"context"
	"time"
)

// Loopback echoes every write back as an inbound chunk, optionally after
// a fixed delay. It stands in for a real device in tests and demos:
// write order is preserved, and chunk boundaries match write boundaries.
type Loopback struct {
	pump
	delay  time.Duration
	sendCh chan []byte
}

var _ Transport = (*Loopback)(nil)

// NewLoopback creates a loopback transport. delay is applied between a
// write and its echo; zero means immediate.
func NewLoopback(delay time.Duration) *Loopback {
	l := &Loopback{
		pump:   newPump(),
		delay:  delay,
		sendCh: make(chan []byte, chunkBacklog),
	}
	l.wg.Add(1)
	go l.echoLoop()
	return l
}

func (l *Loopback) Write(ctx context.Context, p []byte) error {
	if l.closed() {
		return ErrTransportClosed
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	select {
	case l.sendCh <- chunk:
		return nil
	case <-l.stopCh:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectError surfaces a mid-stream fault to the consumer, the way a
// real device reports a parity or overrun error. The stream keeps
// flowing afterward.
func (l *Loopback) InjectError(err error) {
	l.fault(err)
}

// FailWith ends the stream with a terminal error, simulating a device
// that drops off the bus.
func (l *Loopback) FailWith(err error) {
	l.setErr(err)
	l.Close()
}

func (l *Loopback) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopCh)
		l.wg.Wait()
	})
	return nil
}

func (l *Loopback) echoLoop() {
	defer l.wg.Done()
	defer close(l.chunks)

	for {
		select {
		case <-l.stopCh:
			return
		case chunk := <-l.sendCh:
			if l.delay > 0 {
				select {
				case <-time.After(l.delay):
				case <-l.stopCh:
					return
				}
			}
			select {
			case l.chunks <- chunk:
			case <-l.stopCh:
				return
			}
		}
	}
}
