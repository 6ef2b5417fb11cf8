package message

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/codemonkey800/claude-code-web/internal/errors"
)

// DefaultMaxLineSize bounds a single output line.
const DefaultMaxLineSize = 1024 * 1024 // 1MB

// userPayload is the inner message of a user input line.
type userPayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// userLine is written to stdin for every prompt.
type userLine struct {
	Type    string      `json:"type"`
	Message userPayload `json:"message"`
}

// ControlRequest is an out-of-band instruction written to stdin,
// such as a model switch.
//
//nolint:tagliatelle // CLI protocol uses snake_case
type ControlRequest struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id"`
	Request   map[string]any `json:"request"`
}

// EncodeUserMessage encodes prompt as a newline-terminated user message line.
func EncodeUserMessage(prompt string) ([]byte, error) {
	return encodeLine(userLine{
		Type:    TypeUser,
		Message: userPayload{Role: "user", Content: prompt},
	})
}

// EncodeControlRequest encodes a control_request line with the given subtype.
// Extra fields are merged into the request body.
func EncodeControlRequest(requestID, subtype string, fields map[string]any) ([]byte, error) {
	request := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		request[k] = v
	}

	request["subtype"] = subtype

	return encodeLine(ControlRequest{
		Type:      "control_request",
		RequestID: requestID,
		Request:   request,
	})
}

func encodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode line: %w", err)
	}

	return append(data, '\n'), nil
}

// Decoder reads JSON objects from a newline-delimited stream.
//
// A line that is not a JSON object, or that exceeds the size limit, is
// logged and skipped. Blank lines are ignored. Decoding only stops at EOF
// or on a read error.
type Decoder struct {
	log     *slog.Logger
	reader  *bufio.Reader
	maxLine int
	skipped int
}

// NewDecoder creates a decoder over r. maxLineSize <= 0 selects DefaultMaxLineSize.
func NewDecoder(log *slog.Logger, r io.Reader, maxLineSize int) *Decoder {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}

	return &Decoder{
		log:     log,
		reader:  bufio.NewReaderSize(r, 64*1024),
		maxLine: maxLineSize,
	}
}

// Decode returns the next JSON object. It returns io.EOF when the stream ends.
func (d *Decoder) Decode() (map[string]any, error) {
	for {
		line, tooLong, err := d.readLine()
		if err != nil && len(line) == 0 && !tooLong {
			return nil, err
		}

		if tooLong {
			d.skip(&errors.MalformedOutputLineError{
				RawData: string(line),
				Err:     fmt.Errorf("line exceeds %d bytes", d.maxLine),
			})
		} else if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var msg map[string]any

			if jsonErr := json.Unmarshal(trimmed, &msg); jsonErr != nil {
				d.skip(&errors.MalformedOutputLineError{RawData: string(trimmed), Err: jsonErr})
			} else if msg != nil {
				return msg, nil
			}
		}

		if err != nil {
			return nil, err
		}
	}
}

// Skipped returns the number of lines dropped as malformed so far.
func (d *Decoder) Skipped() int {
	return d.skipped
}

func (d *Decoder) skip(err *errors.MalformedOutputLineError) {
	d.skipped++

	raw := err.RawData
	if len(raw) > 200 {
		raw = raw[:200]
	}

	d.log.Warn("Skipping malformed output line", "error", err.Err, "line", raw)
}

// readLine returns the next line without its terminator. When the line is
// longer than maxLine the rest of it is consumed and discarded, and only the
// retained prefix is returned.
func (d *Decoder) readLine() ([]byte, bool, error) {
	var (
		line    []byte
		tooLong bool
	)

	for {
		chunk, err := d.reader.ReadSlice('\n')

		if !tooLong {
			line = append(line, chunk...)

			if len(bytes.TrimSuffix(line, []byte{'\n'})) > d.maxLine {
				tooLong = true
				line = line[:d.maxLine]
			}
		}

		switch {
		case err == nil:
			return bytes.TrimSuffix(line, []byte{'\n'}), tooLong, nil
		case err == bufio.ErrBufferFull:
			continue
		default:
			return line, tooLong, err
		}
	}
}
