// Package session implements the one-time init exchange that binds the run
// to a localizer session.
package session

import (
	"encoding/json"

	"github.com/skyfield-labs/framecast/internal/domain"
	"github.com/skyfield-labs/framecast/internal/journal"
	"github.com/skyfield-labs/framecast/internal/transport"
	"github.com/skyfield-labs/framecast/pkg/log"
)

// State is the handshake phase.
type State int

const (
	NotStarted State = iota
	AwaitingConnect
	AwaitingResponse
	Ready
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case AwaitingConnect:
		return "AwaitingConnect"
	case AwaitingResponse:
		return "AwaitingResponse"
	case Ready:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Handshake drives the init exchange. A failed connect returns to NotStarted
// so the dispatch loop can retry on a later tick; the localizer may simply
// not be listening yet. Once Ready, the session id is immutable for the rest
// of the run and the channel is closed, so later init responses are
// unreachable.
type Handshake struct {
	dialer transport.Dialer
	addr   string
	jrnl   *journal.Journal
	logger log.Logger

	lat    float64
	lng    float64
	meters int

	state State
	conn  transport.Conn
	id    string
}

// New creates a handshake for the given init endpoint and coordinates.
func New(dialer transport.Dialer, addr string, lat, lng float64, meters int, jrnl *journal.Journal, logger log.Logger) *Handshake {
	return &Handshake{
		dialer: dialer,
		addr:   addr,
		jrnl:   jrnl,
		logger: logger,
		lat:    lat,
		lng:    lng,
		meters: meters,
	}
}

// State returns the current handshake phase.
func (h *Handshake) State() State { return h.state }

// Ready reports whether the session has been established.
func (h *Handshake) Ready() bool { return h.state == Ready }

// SessionID returns the established session id, or "" before Ready.
func (h *Handshake) SessionID() string { return h.id }

// Request issues the init exchange. It is a no-op unless the handshake is in
// NotStarted; init requests are never run concurrently with themselves. All
// failures are handled here and surfaced as log output only.
func (h *Handshake) Request() {
	if h.state != NotStarted {
		return
	}
	h.state = AwaitingConnect

	conn, err := h.dialer.Dial(h.addr)
	if err != nil {
		h.logger.Warn("localizer not reachable, will retry", log.Err(err))
		h.state = NotStarted
		return
	}

	payload, err := json.Marshal(domain.InitRequest{
		Lat:    h.lat,
		Lng:    h.lng,
		Meters: h.meters,
		Mode:   domain.ModeDevice,
	})
	if err != nil {
		conn.Close()
		h.logger.Error("encode init request", log.Err(err))
		h.state = NotStarted
		return
	}

	if err := conn.Send(payload); err != nil {
		conn.Close()
		h.logger.Warn("init send failed, will retry", log.Err(err))
		h.state = NotStarted
		return
	}

	h.conn = conn
	h.state = AwaitingResponse
	h.logger.Info("init request sent",
		log.Float64("lat", h.lat),
		log.Float64("lng", h.lng),
		log.Int("meters", h.meters),
	)
}

// Poll checks the init channel for a complete response. On success it
// records SessionStart and SessionReady, closes the channel, and moves to
// Ready. A response without a session_id is a malformed response: it is
// logged and the handshake returns to NotStarted for a fresh attempt, since
// the one-shot exchange cannot complete after the remote side has closed.
func (h *Handshake) Poll() {
	if h.state != AwaitingResponse {
		return
	}

	payload, done, err := h.conn.Poll()
	if err != nil {
		h.reset()
		h.logger.Warn("init exchange failed, will retry", log.Err(err))
		return
	}
	if !done {
		return
	}

	var resp domain.InitResponse
	if uerr := json.Unmarshal(payload, &resp); uerr != nil || resp.SessionID == "" {
		h.reset()
		h.logger.Error("init response missing session_id", log.Err(domain.ErrMalformedResponse))
		return
	}

	h.id = resp.SessionID
	h.conn.Close()
	h.conn = nil
	h.state = Ready

	if err := h.jrnl.Append(domain.KindSessionStart, "session_id=%s lat=%g lng=%g meters=%d", h.id, h.lat, h.lng, h.meters); err != nil {
		h.logger.Error("journal write failed", log.Err(err))
	}
	if err := h.jrnl.Append(domain.KindSessionReady, "session_id=%s", h.id); err != nil {
		h.logger.Error("journal write failed", log.Err(err))
	}
	h.logger.Info("session ready", log.String("session_id", h.id))
}

// Abandon closes any outstanding init channel without reading it.
func (h *Handshake) Abandon() {
	if h.conn != nil {
		h.conn.Close()
		h.conn = nil
	}
}

func (h *Handshake) reset() {
	h.conn.Close()
	h.conn = nil
	h.state = NotStarted
}
