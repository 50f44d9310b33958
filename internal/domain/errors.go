package domain

import "errors"

// Domain errors can be checked with errors.Is.
var (
	// ErrMalformedResponse is returned when a response is missing an
	// expected field (such as session_id) or is not valid JSON.
	ErrMalformedResponse = errors.New("framecast: malformed response")
)
