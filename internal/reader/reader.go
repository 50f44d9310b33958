// Package reader runs the paced dispatch loop: once per tick it sends the
// next frame's fetch request or drops the frame under backpressure, and
// between ticks it polls the outstanding exchange at a much finer
// granularity so responses are recorded promptly.
package reader

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skyfield-labs/framecast/internal/domain"
	"github.com/skyfield-labs/framecast/internal/journal"
	"github.com/skyfield-labs/framecast/internal/session"
	"github.com/skyfield-labs/framecast/internal/transport"
	"github.com/skyfield-labs/framecast/pkg/log"
)

// Config contains the dispatch loop parameters. Tick and Poll are
// injectable so tests can drive the loop without real one-second delays.
type Config struct {
	InitEndpoint  string
	FetchEndpoint string

	Lat    float64
	Lng    float64
	Meters int

	// LoggingID is the per-run correlation id included in fetch requests.
	LoggingID string

	// Tick is the pacing period between send-or-drop decisions.
	Tick time.Duration

	// Poll is the fine-grained interval for response checks between ticks.
	Poll time.Duration

	// MaxRuntime is the watchdog bound on total wall-clock runtime.
	MaxRuntime time.Duration
}

// loopState is the explicit dispatch state. The loop owns it exclusively;
// nothing here is shared with other goroutines.
type loopState struct {
	cursor   int
	ready    bool
	lastTick time.Time

	fetch      transport.Conn
	fetchIndex int
	fetchPath  string
}

// Reader is the device-side streaming client.
type Reader struct {
	cfg    Config
	dialer transport.Dialer
	frames []domain.Frame
	jrnl   *journal.Journal
	logger log.Logger
	now    func() time.Time
}

// New creates a Reader over an immutable frame catalog.
func New(cfg Config, dialer transport.Dialer, frames []domain.Frame, jrnl *journal.Journal, logger log.Logger) *Reader {
	return &Reader{
		cfg:    cfg,
		dialer: dialer,
		frames: frames,
		jrnl:   jrnl,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes the dispatch loop until clean drain, watchdog expiry, or
// context cancellation. Per-exchange failures never terminate the loop; they
// surface only as journal and log entries. A nil return means the process
// should exit 0 (clean drain and watchdog timeout both qualify).
func (r *Reader) Run(ctx context.Context) error {
	if len(r.frames) == 0 {
		r.logger.Info("no frames to process")
		return nil
	}

	hs := session.New(r.dialer, r.cfg.InitEndpoint, r.cfg.Lat, r.cfg.Lng, r.cfg.Meters, r.jrnl, r.logger)
	wd := newWatchdog(r.cfg.MaxRuntime, r.now)
	st := &loopState{ready: true}

	r.logger.Info("dispatch loop starting",
		log.Int("frames", len(r.frames)),
		log.Duration("tick", r.cfg.Tick),
		log.Duration("max_runtime", r.cfg.MaxRuntime),
	)

	for {
		if wd.Expired() {
			remaining := len(r.frames) - st.cursor
			if err := r.jrnl.Append(domain.KindTimeout, "elapsed=%ds remaining=%d", int(wd.Elapsed().Seconds()), remaining); err != nil {
				r.logger.Error("journal write failed", log.Err(err))
			}
			r.logger.Warn("watchdog expired",
				log.Duration("elapsed", wd.Elapsed()),
				log.Int("remaining", remaining),
			)
			r.abandon(st, hs)
			return nil
		}

		// Response poller: exactly one channel per kind is outstanding, so
		// exactly one is polled.
		if !hs.Ready() {
			hs.Poll()
		} else if !st.ready {
			r.pollFetch(st)
		}

		if r.now().Sub(st.lastTick) >= r.cfg.Tick {
			st.lastTick = r.now()
			r.decide(st, hs)
		}

		if hs.Ready() && st.cursor == len(r.frames) && st.ready {
			r.logger.Info("clean drain", log.Int("frames", len(r.frames)))
			return nil
		}

		select {
		case <-ctx.Done():
			r.abandon(st, hs)
			return ctx.Err()
		case <-time.After(r.cfg.Poll):
		}
	}
}

// decide makes the once-per-tick send-or-drop decision.
func (r *Reader) decide(st *loopState, hs *session.Handshake) {
	if !hs.Ready() {
		// Duplicate init requests are avoided; a pending handshake just
		// waits for the poller.
		if hs.State() == session.NotStarted {
			hs.Request()
		}
		return
	}

	if st.cursor >= len(r.frames) {
		return
	}

	if st.ready {
		r.sendFetch(st, hs.SessionID())
		return
	}

	// Backpressure: the localizer is still working on the previous frame,
	// so this frame is dropped rather than queued or resent.
	frame := r.frames[st.cursor]
	st.cursor++
	if err := r.jrnl.Append(domain.KindFrameDropped, "index=%d path=%s reason=busy", frame.Index, frame.Path); err != nil {
		r.logger.Error("journal write failed", log.Err(err))
	}
	r.logger.Warn("frame dropped, localizer busy",
		log.Int("index", frame.Index),
		log.String("path", frame.Path),
	)
}

// sendFetch issues the fetch exchange for the frame at the cursor. The
// cursor always advances; a connect or send failure counts as a drop.
func (r *Reader) sendFetch(st *loopState, sessionID string) {
	frame := r.frames[st.cursor]
	st.cursor++

	payload, err := json.Marshal(domain.FetchRequest{
		SessionID: sessionID,
		ImagePath: frame.Path,
		LoggingID: r.cfg.LoggingID,
	})
	if err != nil {
		r.dropFrame(st, frame, "encode", err)
		return
	}
	framed, err := transport.EncodeFrame(payload)
	if err != nil {
		r.dropFrame(st, frame, "oversize", err)
		return
	}

	conn, err := r.dialer.Dial(r.cfg.FetchEndpoint)
	if err != nil {
		r.dropFrame(st, frame, "connect", err)
		return
	}
	if err := conn.Send(framed); err != nil {
		conn.Close()
		r.dropFrame(st, frame, "send", err)
		return
	}

	st.fetch = conn
	st.fetchIndex = frame.Index
	st.fetchPath = frame.Path
	st.ready = false
	r.logger.Debug("fetch request sent",
		log.Int("index", frame.Index),
		log.String("path", frame.Path),
	)
}

// pollFetch checks the outstanding fetch exchange. A complete response
// restores readiness and is journaled with the frame index and raw payload;
// a connection error counts as a drop for the in-flight frame.
func (r *Reader) pollFetch(st *loopState) {
	payload, done, err := st.fetch.Poll()
	if err != nil {
		st.fetch.Close()
		frame := domain.Frame{Index: st.fetchIndex, Path: st.fetchPath}
		st.fetch = nil
		st.ready = true
		if jerr := r.jrnl.Append(domain.KindFrameDropped, "index=%d path=%s reason=exchange", frame.Index, frame.Path); jerr != nil {
			r.logger.Error("journal write failed", log.Err(jerr))
		}
		r.logger.Warn("fetch exchange failed",
			log.Int("index", frame.Index),
			log.Err(err),
		)
		return
	}
	if !done {
		return
	}

	st.fetch.Close()
	st.fetch = nil
	st.ready = true

	if err := r.jrnl.Append(domain.KindFrameResult, "index=%d response=%s", st.fetchIndex, payload); err != nil {
		r.logger.Error("journal write failed", log.Err(err))
	}

	var resp domain.FetchResponse
	if uerr := json.Unmarshal(payload, &resp); uerr != nil {
		r.logger.Warn("fetch response not parseable",
			log.Int("index", st.fetchIndex),
			log.Err(domain.ErrMalformedResponse),
		)
		return
	}
	r.logger.Info("frame located",
		log.Int("index", st.fetchIndex),
		log.Bool("success", resp.Success),
		log.Float64("lat", resp.GPS.Lat),
		log.Float64("lng", resp.GPS.Lng),
	)
}

func (r *Reader) dropFrame(st *loopState, frame domain.Frame, reason string, err error) {
	if jerr := r.jrnl.Append(domain.KindFrameDropped, "index=%d path=%s reason=%s", frame.Index, frame.Path, reason); jerr != nil {
		r.logger.Error("journal write failed", log.Err(jerr))
	}
	r.logger.Warn("frame dropped",
		log.Int("index", frame.Index),
		log.String("reason", reason),
		log.Err(err),
	)
}

// abandon closes outstanding channels without reading them. The localizer's
// in-progress work for an abandoned frame is not tracked or cancelled.
func (r *Reader) abandon(st *loopState, hs *session.Handshake) {
	if st.fetch != nil {
		st.fetch.Close()
		st.fetch = nil
	}
	hs.Abandon()
}
