package domain

// OutcomeKind labels one journal entry. The string value is written
// literally as the line label, so these must not change.
type OutcomeKind string

const (
	// KindSessionStart records that a session was established.
	KindSessionStart OutcomeKind = "SessionStart"

	// KindSessionReady records that the dispatch loop was unblocked.
	KindSessionReady OutcomeKind = "SessionReady"

	// KindFrameResult records a completed fetch exchange with its raw
	// response payload.
	KindFrameResult OutcomeKind = "FrameResult"

	// KindFrameDropped records a frame abandoned under backpressure or
	// after a failed exchange.
	KindFrameDropped OutcomeKind = "FrameDropped"

	// KindTimeout records watchdog expiry.
	KindTimeout OutcomeKind = "Timeout"
)
