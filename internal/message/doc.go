// Package message implements the newline-delimited JSON protocol spoken by
// the Claude CLI in stream-json mode.
//
// Input is encoded one object per line:
//
//	{"type":"user","message":{"role":"user","content":"hello"}}
//
// Output lines are decoded into maps and classified by their "type" field
// into a small set of variants. Only the discriminators (type, subtype and
// session_id) are interpreted; the remaining payload is carried opaquely
// and re-encoded unchanged.
package message
