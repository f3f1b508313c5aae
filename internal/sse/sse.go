// Package sse decodes the text/event-stream dialect spoken by the upstream
// completions endpoint: JSON envelopes carried on "data: " lines, closed by
// a "data: [DONE]" sentinel. Decoding is lossy-tolerant: blank lines,
// non-data fields, and payloads that fail to parse are skipped, never fatal.
package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// maxLineBytes bounds a single stream line. Envelopes are small; the
	// headroom covers content snapshots restating a whole long turn.
	maxLineBytes = 4 * 1024 * 1024
)

// Delta is the incremental payload inside a content_block_delta event.
type Delta struct {
	Type      string `json:"type"`
	Thinking  string `json:"thinking,omitempty"`
	Text      string `json:"text,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Block is a content block as it appears on the wire, either under a
// content_block_start event or in a top-level content snapshot. Data holds
// the opaque payload of a redacted_thinking block and must round-trip
// unchanged.
type Block struct {
	Type      string `json:"type"`
	Thinking  string `json:"thinking,omitempty"`
	Text      string `json:"text,omitempty"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`
}

// StreamEvent is the nested event description found at rawEvents.event.
type StreamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index,omitempty"`
	ContentBlock *Block `json:"content_block,omitempty"`
	Delta        *Delta `json:"delta,omitempty"`
}

// Envelope is the decoded form of one data payload. Either field may be
// absent: an envelope that matches no known shape is still real traffic and
// callers count it as such.
type Envelope struct {
	RawEvents struct {
		Event *StreamEvent `json:"event"`
	} `json:"rawEvents"`
	Content []Block `json:"content"`
}

// Event is the result of decoding one stream line: the end-of-stream
// sentinel or an envelope, never both.
type Event struct {
	Done     bool
	Envelope *Envelope
}

// DecodeLine decodes a single line of an event stream. It returns nil for
// lines that carry nothing: blanks, lines without the data prefix, and
// malformed payloads. It has no state; calling it twice on the same input
// yields the same result.
func DecodeLine(line []byte) *Event {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}
	payload, ok := bytes.CutPrefix(trimmed, []byte(dataPrefix))
	if !ok {
		return nil
	}
	if string(payload) == doneSentinel {
		return &Event{Done: true}
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil
	}
	return &Event{Envelope: &env}
}

// Reader yields decoded events from a streaming response body in arrival
// order, skipping lines that decode to nothing.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps a response body.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// Next returns the next decoded event. It returns io.EOF at end of input;
// any other error comes from the underlying reader (a mid-stream transport
// failure surfaces here).
func (r *Reader) Next() (*Event, error) {
	for r.sc.Scan() {
		if ev := DecodeLine(r.sc.Bytes()); ev != nil {
			return ev, nil
		}
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
