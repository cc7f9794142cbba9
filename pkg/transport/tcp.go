// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPConn adapts a TCP connection to the Transport interface. Devices
// exposed over terminal servers or TCP-serial bridges land here.
type TCPConn struct {
	pump
	conn net.Conn
}

var _ Transport = (*TCPConn)(nil)

// DialTCP connects to addr ("host:port") and starts the read pump.
func DialTCP(ctx context.Context, addr string) (*TCPConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewConn(conn), nil
}

// NewConn wraps an established connection. Useful for accepted
// connections and for net.Pipe in tests.
func NewConn(conn net.Conn) *TCPConn {
	t := &TCPConn{
		pump: newPump(),
		conn: conn,
	}
	t.wg.Add(1)
	go t.readFrom(conn)
	return t
}

func (t *TCPConn) Write(ctx context.Context, p []byte) error {
	if t.closed() {
		return ErrTransportClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(deadline)
		defer t.conn.SetWriteDeadline(time.Time{})
	}
	if _, err := t.conn.Write(p); err != nil {
		if t.closed() {
			return ErrTransportClosed
		}
		return fmt.Errorf("tcp write: %w", err)
	}
	return nil
}

// RemoteAddr returns the peer address.
func (t *TCPConn) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

func (t *TCPConn) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopCh)
		err = t.conn.Close()
		t.wg.Wait()
	})
	return err
}
