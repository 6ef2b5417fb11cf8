package subprocess

import (
	"strings"
	"sync"
)

const (
	// maxStderrTail bounds the stderr kept for crash reports.
	maxStderrTail = 64 * 1024

	// maxPartialLine bounds the unterminated stderr line carried between
	// reads while scanning for auth failures.
	maxPartialLine = 4096
)

// authFailurePatterns are lowercase substrings the CLI prints on stderr when
// it cannot authenticate. These do not always surface through stdout.
var authFailurePatterns = []string{
	"invalid api key",
	"invalid x-api-key",
	"authentication failed",
	"authentication_error",
	"401 unauthorized",
	"please run /login",
	"not logged in",
	"oauth token has expired",
}

// detectAuthFailure returns the first stderr line mentioning an
// authentication problem, or "" when none does.
func detectAuthFailure(chunk string) string {
	for line := range strings.SplitSeq(chunk, "\n") {
		lower := strings.ToLower(line)

		for _, pattern := range authFailurePatterns {
			if strings.Contains(lower, pattern) {
				return strings.TrimSpace(line)
			}
		}
	}

	return ""
}

// authScanner matches authFailurePatterns against whole stderr lines. A line
// split across reads is carried over until its newline arrives.
type authScanner struct {
	partial string
}

// Feed returns the first complete line reporting an auth failure, or "".
func (s *authScanner) Feed(chunk string) string {
	data := s.partial + chunk

	i := strings.LastIndexByte(data, '\n')
	if i < 0 {
		s.partial = keepSuffix(data, maxPartialLine)

		return ""
	}

	s.partial = keepSuffix(data[i+1:], maxPartialLine)

	return detectAuthFailure(data[:i])
}

// Flush checks the trailing unterminated line once stderr is closed.
func (s *authScanner) Flush() string {
	line := s.partial
	s.partial = ""

	return detectAuthFailure(line)
}

func keepSuffix(s string, n int) string {
	if len(s) > n {
		return s[len(s)-n:]
	}

	return s
}

// tailBuffer keeps the last maxStderrTail bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *tailBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - maxStderrTail; over > 0 {
		b.buf = b.buf[over:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.buf)
}

// cleanStderr drops Bun's minified source context from CLI error output,
// keeping the error message and stack trace.
func cleanStderr(stderr string) string {
	if stderr == "" {
		return ""
	}

	var cleaned strings.Builder

	for line := range strings.SplitSeq(stderr, "\n") {
		if isSourceContextLine(strings.TrimSpace(line)) {
			continue
		}

		if cleaned.Len() > 0 {
			cleaned.WriteString("\n")
		}

		cleaned.WriteString(line)
	}

	return strings.TrimSpace(cleaned.String())
}

// isSourceContextLine matches Bun's "1234 | <code>" source lines.
func isSourceContextLine(line string) bool {
	prefix, _, found := strings.Cut(line, "|")
	if !found {
		return false
	}

	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return false
	}

	return strings.IndexFunc(prefix, func(r rune) bool { return r < '0' || r > '9' }) < 0
}
