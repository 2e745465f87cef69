package research

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// frameDelimiter separates events on the wire. An event may span multiple
// network reads, and one read may carry multiple events.
var frameDelimiter = []byte("\n\n")

// dataPrefix marks the payload line within a frame.
const dataPrefix = "data:"

// Event types emitted by the generation service.
const (
	eventContent = "content"
	eventError   = "error"
	eventDone    = "done"
)

// streamEvent is one decoded frame from the generation stream.
type streamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// streamDecoder incrementally decodes delimiter-framed events from a
// reader. Reads are buffered: an incomplete trailing frame is retained and
// prefixed to the next read rather than parsed prematurely or dropped.
type streamDecoder struct {
	r   io.Reader
	buf []byte
}

// newStreamDecoder creates a decoder over the response body.
func newStreamDecoder(r io.Reader) *streamDecoder {
	return &streamDecoder{r: r}
}

// Next returns the next decoded event. It returns ErrStreamInterrupted if
// the underlying reader is exhausted before a complete frame is available,
// and ErrMalformedFrame if a complete frame cannot be parsed.
func (d *streamDecoder) Next() (*streamEvent, error) {
	chunk := make([]byte, 4096)

	for {
		// Emit any complete frame already buffered before reading more.
		for {
			idx := bytes.Index(d.buf, frameDelimiter)
			if idx < 0 {
				break
			}

			frame := d.buf[:idx]
			d.buf = d.buf[idx+len(frameDelimiter):]

			event, err := parseFrame(frame)
			if err != nil {
				return nil, err
			}
			if event != nil {
				return event, nil
			}
			// Frame carried no payload line (keep-alive or comment); keep
			// scanning.
		}

		n, err := d.r.Read(chunk)
		if n > 0 {
			d.buf = append(d.buf, chunk[:n]...)
			continue
		}
		if err == io.EOF {
			// The server closed the connection. Anything left in the buffer
			// is a truncated frame; discarding it silently would hide a
			// dropped fragment, so the whole call is reported interrupted.
			return nil, ErrStreamInterrupted
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
		}
	}
}

// parseFrame extracts the payload from one complete frame. Frames without
// a data line (comments, keep-alives) yield a nil event and no error.
func parseFrame(frame []byte) (*streamEvent, error) {
	for _, line := range strings.Split(string(frame), "\n") {
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if payload == "" {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}

		return &event, nil
	}

	return nil, nil
}
