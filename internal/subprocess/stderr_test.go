package subprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectAuthFailure(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		want  string
	}{
		{name: "invalid key", chunk: "Error: Invalid API key\n", want: "Error: Invalid API key"},
		{name: "login hint", chunk: "warming up\n  Please run /login  \n", want: "Please run /login"},
		{name: "expired oauth", chunk: "OAuth token has expired", want: "OAuth token has expired"},
		{name: "unauthorized", chunk: "HTTP 401 Unauthorized", want: "HTTP 401 Unauthorized"},
		{name: "api error type", chunk: `{"type":"authentication_error"}`, want: `{"type":"authentication_error"}`},
		{name: "unrelated", chunk: "debug: loading config\n", want: ""},
		{name: "benign mention", chunk: "debug: loaded authentication settings from ~/.claude\n", want: ""},
		{name: "bare unauthorized word", chunk: "skipping unauthorized hook\n", want: ""},
		{name: "empty", chunk: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, detectAuthFailure(tt.chunk))
		})
	}
}

func TestAuthScanner_LineSplitAcrossChunks(t *testing.T) {
	var s authScanner

	require.Empty(t, s.Feed("starting\nError: Invalid A"))
	require.Equal(t, "Error: Invalid API key", s.Feed("PI key\nmore output\n"))
	require.Empty(t, s.Flush())
}

func TestAuthScanner_FlushChecksUnterminatedLine(t *testing.T) {
	var s authScanner

	require.Empty(t, s.Feed("Not logged in"))
	require.Equal(t, "Not logged in", s.Flush())
	require.Empty(t, s.Flush())
}

func TestAuthScanner_BoundsPartialLine(t *testing.T) {
	var s authScanner

	require.Empty(t, s.Feed(strings.Repeat("x", 3*maxPartialLine)))
	require.Len(t, s.partial, maxPartialLine)
}

func TestTailBuffer_KeepsSuffix(t *testing.T) {
	var b tailBuffer

	b.Write([]byte(strings.Repeat("a", maxStderrTail)))
	b.Write([]byte("tail"))

	got := b.String()
	require.Len(t, got, maxStderrTail)
	require.True(t, strings.HasSuffix(got, "tail"))
}

func TestCleanStderr(t *testing.T) {
	input := strings.Join([]string{
		"error: something broke",
		"1234 | var a=function(){return b}",
		"  12 | minified",
		"    at main (cli.js:1:2)",
		"a | b",
	}, "\n")

	require.Equal(t,
		"error: something broke\n    at main (cli.js:1:2)\na | b",
		cleanStderr(input),
	)
	require.Empty(t, cleanStderr(""))
}

func TestIsSourceContextLine(t *testing.T) {
	require.True(t, isSourceContextLine("42 | code"))
	require.False(t, isSourceContextLine("| code"))
	require.False(t, isSourceContextLine("no pipe here"))
	require.False(t, isSourceContextLine("4x | code"))
}
