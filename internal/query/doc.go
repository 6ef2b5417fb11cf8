// Package query executes prompts against live sessions.
//
// Each ExecuteQuery call writes one user message and resolves on the first
// result message the session emits afterwards. It races that completion
// against a timeout measured from submission and against cancellation of the
// caller's context or CancelQuery. Exactly one outcome wins, and the watcher
// and timer are released on every path. A crash or authentication failure
// of the session's process fails the query in flight.
//
// Query states live only while a query is running.
package query
