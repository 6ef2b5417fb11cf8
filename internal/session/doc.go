// Package session maps session identifiers to live CLI processes.
//
// The Manager owns exactly one process per session. Each session moves
// through absent, starting, live and closing; create reserves the entry
// before spawning so a concurrent create for the same id fails instead of
// spawning a second process. A process that crashes is reaped through the
// closing state like any explicit destroy. It is never respawned.
//
// The working directory for a session comes from the caller, usually via a
// Registry owned by the surrounding application.
package session
