package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"askthecity/model"
)

type LineKind int

const (
	LineBlank   LineKind = iota // frame boundary
	LineData                    // "data: ..." payload
	LineEvent                   // "event: ..." name
	LineComment                 // ": ..." keep-alive
	LineField                   // "id:" / "retry:" framing
	LineText                    // anything else, treated as raw text
)

// Line is one complete line of the stream.
type Line struct {
	Kind  LineKind
	Value string
}

const readSize = 4096

// Decoder splits a chunk-delivered stream into complete lines. Frame and
// line boundaries may fall anywhere across network reads; text after the
// last newline is held in the buffer until the next read completes it.
type Decoder struct {
	r   io.Reader
	buf []byte
	tmp []byte
	err error
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, tmp: make([]byte, readSize)}
}

// Next returns the next complete line. At end of input any unterminated
// remainder is returned as a final line, then io.EOF.
func (d *Decoder) Next() (Line, error) {
	for {
		if i := bytes.IndexByte(d.buf, '\n'); i >= 0 {
			raw := string(d.buf[:i])
			d.buf = d.buf[i+1:]
			return classify(strings.TrimSuffix(raw, "\r")), nil
		}

		if d.err != nil {
			if len(d.buf) > 0 {
				raw := string(d.buf)
				d.buf = nil
				return classify(strings.TrimSuffix(raw, "\r")), nil
			}
			return Line{}, d.err
		}

		n, err := d.r.Read(d.tmp)
		if n > 0 {
			d.buf = append(d.buf, d.tmp[:n]...)
		}
		if err != nil {
			d.err = err
		}
	}
}

func classify(raw string) Line {
	switch {
	case strings.TrimSpace(raw) == "":
		return Line{Kind: LineBlank}
	case strings.HasPrefix(raw, "data:"):
		return Line{Kind: LineData, Value: strings.TrimSpace(raw[len("data:"):])}
	case strings.HasPrefix(raw, "event:"):
		return Line{Kind: LineEvent, Value: strings.TrimSpace(raw[len("event:"):])}
	case strings.HasPrefix(raw, ":"):
		return Line{Kind: LineComment, Value: strings.TrimSpace(raw[1:])}
	case strings.HasPrefix(raw, "id:"), strings.HasPrefix(raw, "retry:"):
		return Line{Kind: LineField, Value: raw}
	default:
		return Line{Kind: LineText, Value: raw}
	}
}

var errNotObject = errors.New("payload is not a JSON object")

// ParseEvent decodes a data payload. Payloads that are not JSON objects
// return an error; callers treat those as plain text.
func ParseEvent(data string) (model.StreamEvent, error) {
	var ev model.StreamEvent
	trimmed := strings.TrimSpace(data)
	if !strings.HasPrefix(trimmed, "{") {
		return ev, errNotObject
	}
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		return ev, err
	}
	return ev, nil
}
