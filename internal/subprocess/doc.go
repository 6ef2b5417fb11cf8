// Package subprocess owns one long-lived Claude CLI process per session.
//
// A Process spawns the CLI in stream-json mode, reads stdout line by line
// and publishes every decoded message to the event bus in the order the CLI
// emitted it, and watches stderr for authentication failures. It exposes
// Write for stdin, Close for a half-close of stdin, and Terminate for
// signal-based shutdown that escalates from SIGTERM to SIGKILL.
//
// An unexpected exit with a non-zero status or a signal is published as an
// EventSubprocessCrashed event. The process is never restarted.
package subprocess
