// Package transport manages the point-to-point connections to the localizer.
// Each logical request opens a fresh connection, which is closed exactly
// once: after the complete response is read or when the exchange is
// abandoned.
package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// pollWait bounds how long a single Poll call may block on the socket. It is
// short enough that the dispatch loop is never suspended in any meaningful
// sense, but long enough that buffered data is actually delivered (a read
// against an already-expired deadline fails without returning data).
const pollWait = time.Millisecond

// Conn is a single request/response exchange with the localizer. The
// response is complete when the localizer closes its end of the connection.
type Conn interface {
	// Send writes the request bytes. Framing, when required, is applied by
	// the caller before Send.
	Send(b []byte) error

	// Poll checks for response data without suspending the caller. It
	// returns (nil, false, nil) while the response is incomplete, the full
	// payload with done=true once the remote side has closed, or an error
	// if the connection failed.
	Poll() (payload []byte, done bool, err error)

	// Close releases the connection. Safe to call more than once.
	Close() error
}

type netConn struct {
	c      net.Conn
	buf    bytes.Buffer
	closed bool
}

func (n *netConn) Send(b []byte) error {
	if err := n.c.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if _, err := n.c.Write(b); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

func (n *netConn) Poll() ([]byte, bool, error) {
	if err := n.c.SetReadDeadline(time.Now().Add(pollWait)); err != nil {
		return nil, false, fmt.Errorf("transport: set read deadline: %w", err)
	}
	var chunk [4096]byte
	for {
		k, err := n.c.Read(chunk[:])
		if k > 0 {
			n.buf.Write(chunk[:k])
		}
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, false, nil
		}
		if errors.Is(err, io.EOF) {
			return n.buf.Bytes(), true, nil
		}
		return nil, false, fmt.Errorf("transport: receive: %w", err)
	}
}

func (n *netConn) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true
	return n.c.Close()
}
