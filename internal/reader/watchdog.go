package reader

import "time"

// watchdog bounds total wall-clock runtime. It is the terminal safety net
// when the localizer never responds, distinct from clean drain.
type watchdog struct {
	start time.Time
	bound time.Duration
	now   func() time.Time
}

func newWatchdog(bound time.Duration, now func() time.Time) *watchdog {
	return &watchdog{start: now(), bound: bound, now: now}
}

func (w *watchdog) Expired() bool {
	return w.bound > 0 && w.Elapsed() >= w.bound
}

func (w *watchdog) Elapsed() time.Duration {
	return w.now().Sub(w.start)
}
