package message

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var nopLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// chunkReader delivers data in controlled chunks to simulate pipe buffering.
type chunkReader struct {
	chunks []string
	index  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.index >= len(r.chunks) {
		return 0, io.EOF
	}

	n := copy(p, r.chunks[r.index])
	r.index++

	return n, nil
}

func decodeAll(t *testing.T, d *Decoder) []map[string]any {
	t.Helper()

	var out []map[string]any

	for {
		msg, err := d.Decode()
		if err == io.EOF {
			return out
		}

		require.NoError(t, err)

		out = append(out, msg)
	}
}

func TestEncodeUserMessage(t *testing.T) {
	line, err := EncodeUserMessage("hello\nworld")
	require.NoError(t, err)

	require.True(t, strings.HasSuffix(string(line), "\n"))
	require.Equal(t, 1, strings.Count(string(line), "\n"))
	require.JSONEq(t,
		`{"type":"user","message":{"role":"user","content":"hello\nworld"}}`,
		strings.TrimSuffix(string(line), "\n"),
	)
}

func TestEncodeControlRequest(t *testing.T) {
	line, err := EncodeControlRequest("req_1", "set_model", map[string]any{"model": "opus"})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(line, &decoded))

	require.Equal(t, "control_request", decoded["type"])
	require.Equal(t, "req_1", decoded["request_id"])
	require.Equal(t, map[string]any{"subtype": "set_model", "model": "opus"}, decoded["request"])
}

func TestDecoder_MultipleObjectsInOneChunk(t *testing.T) {
	d := NewDecoder(nopLog, &chunkReader{chunks: []string{
		`{"type":"system","subtype":"init"}` + "\n" + `{"type":"result"}` + "\n",
	}}, 0)

	msgs := decodeAll(t, d)

	require.Len(t, msgs, 2)
	require.Equal(t, "system", msgs[0]["type"])
	require.Equal(t, "result", msgs[1]["type"])
}

func TestDecoder_ObjectSplitAcrossChunks(t *testing.T) {
	d := NewDecoder(nopLog, &chunkReader{chunks: []string{
		`{"type":"assis`,
		`tant","message":{"content":"Line 1\nLine 2"}}`,
		"\n",
	}}, 0)

	msgs := decodeAll(t, d)

	require.Len(t, msgs, 1)
	require.Equal(t, "assistant", msgs[0]["type"])
}

func TestDecoder_SkipsMalformedLine(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"assistant"}`,
		`{"type": broken`,
		``,
		`[1,2,3]`,
		`{"type":"result"}`,
	}, "\n")

	d := NewDecoder(nopLog, strings.NewReader(input), 0)
	msgs := decodeAll(t, d)

	require.Len(t, msgs, 2)
	require.Equal(t, "assistant", msgs[0]["type"])
	require.Equal(t, "result", msgs[1]["type"])
	require.Equal(t, 2, d.Skipped())
}

func TestDecoder_FinalLineWithoutNewline(t *testing.T) {
	d := NewDecoder(nopLog, strings.NewReader(`{"type":"result"}`), 0)

	msgs := decodeAll(t, d)

	require.Len(t, msgs, 1)
}

func TestDecoder_OversizedLineSkipped(t *testing.T) {
	big := `{"type":"assistant","pad":"` + strings.Repeat("x", 200) + `"}`
	input := big + "\n" + `{"type":"result"}` + "\n"

	d := NewDecoder(nopLog, strings.NewReader(input), 64)
	msgs := decodeAll(t, d)

	require.Len(t, msgs, 1)
	require.Equal(t, "result", msgs[0]["type"])
	require.Equal(t, 1, d.Skipped())
}

func TestDecoder_LargeLineWithinLimit(t *testing.T) {
	payload := strings.Repeat("y", 200*1024)
	line, err := json.Marshal(map[string]any{"type": "assistant", "pad": payload})
	require.NoError(t, err)

	d := NewDecoder(nopLog, strings.NewReader(string(line)+"\n"), 0)
	msgs := decodeAll(t, d)

	require.Len(t, msgs, 1)
	require.Equal(t, payload, msgs[0]["pad"])
}
