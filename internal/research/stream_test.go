package research

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader returns its chunks one per Read call, simulating network
// reads that split frames at arbitrary byte boundaries.
type chunkedReader struct {
	chunks []string
	pos    int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.pos])
	r.pos++
	return n, nil
}

func TestStreamDecoderSingleFrame(t *testing.T) {
	t.Parallel()

	d := newStreamDecoder(strings.NewReader("data: {\"type\":\"content\",\"content\":\"hello\"}\n\n"))

	event, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "content", event.Type)
	assert.Equal(t, "hello", event.Content)
}

func TestStreamDecoderMultipleFramesInOneRead(t *testing.T) {
	t.Parallel()

	stream := "data: {\"type\":\"content\",\"content\":\"a\"}\n\n" +
		"data: {\"type\":\"content\",\"content\":\"b\"}\n\n" +
		"data: {\"type\":\"done\"}\n\n"
	d := newStreamDecoder(strings.NewReader(stream))

	var contents []string
	for {
		event, err := d.Next()
		require.NoError(t, err)
		if event.Type == "done" {
			break
		}
		contents = append(contents, event.Content)
	}

	assert.Equal(t, []string{"a", "b"}, contents)
}

func TestStreamDecoderFrameSplitAcrossReads(t *testing.T) {
	t.Parallel()

	// One frame delivered in three reads, split mid-payload and
	// mid-delimiter.
	r := &chunkedReader{chunks: []string{
		"data: {\"type\":\"content\",\"con",
		"tent\":\"split\"}\n",
		"\ndata: {\"type\":\"done\"}\n\n",
	}}
	d := newStreamDecoder(r)

	event, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "content", event.Type)
	assert.Equal(t, "split", event.Content)

	event, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, "done", event.Type)
}

func TestStreamDecoderSkipsKeepAliveFrames(t *testing.T) {
	t.Parallel()

	stream := ": keep-alive\n\n" +
		"\n\n" +
		"data: {\"type\":\"content\",\"content\":\"x\"}\n\n"
	d := newStreamDecoder(strings.NewReader(stream))

	event, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "content", event.Type)
	assert.Equal(t, "x", event.Content)
}

func TestStreamDecoderTruncatedStream(t *testing.T) {
	t.Parallel()

	// EOF with a partial frame still buffered.
	d := newStreamDecoder(strings.NewReader("data: {\"type\":\"content\",\"content\":\"lost"))

	_, err := d.Next()
	assert.ErrorIs(t, err, ErrStreamInterrupted)
}

func TestStreamDecoderEmptyStream(t *testing.T) {
	t.Parallel()

	d := newStreamDecoder(strings.NewReader(""))

	_, err := d.Next()
	assert.ErrorIs(t, err, ErrStreamInterrupted)
}

func TestStreamDecoderMalformedPayload(t *testing.T) {
	t.Parallel()

	d := newStreamDecoder(strings.NewReader("data: {not json}\n\n"))

	_, err := d.Next()
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestParseFrameIgnoresNonDataLines(t *testing.T) {
	t.Parallel()

	event, err := parseFrame([]byte("event: message\nid: 42\ndata: {\"type\":\"done\"}"))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "done", event.Type)
}
