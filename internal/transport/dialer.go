package transport

import (
	"fmt"
	"net"
	"time"
)

// Dialer opens a fresh Conn for one request/response exchange.
type Dialer interface {
	Dial(addr string) (Conn, error)
}

// NetDialer is the production Dialer backed by TCP.
type NetDialer struct {
	// Timeout bounds the connect attempt. The localizer may not be
	// listening yet; a failed dial is recoverable and retried by the
	// caller on a later tick.
	Timeout time.Duration
}

// Dial connects to addr ("host:port").
func (d NetDialer) Dial(addr string) (Conn, error) {
	c, err := net.DialTimeout("tcp", addr, d.Timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: connect %s: %w", addr, err)
	}
	return &netConn{c: c}, nil
}
