// Package log provides the structured logging abstraction used across
// framecast.
//
// The [Logger] interface decouples components from the concrete logging
// backend. Production code wires [ZerologAdapter]; tests use [NoopLogger].
package log
