// Package errors defines error types for the session engine.
//
// This package provides structured error types for each failure class of the
// engine: missing sessions, unusable process streams, query timeouts and
// cancellations, subprocess crashes, and authentication problems reported by
// the CLI. All error types support error unwrapping and can be checked using
// errors.Is, errors.As, and errors.AsType.
package errors
