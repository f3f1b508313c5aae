package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDecodeLine_ThinkingDelta(t *testing.T) {
	line := []byte(`data: {"rawEvents":{"event":{"type":"content_block_delta","delta":{"type":"thinking_delta","thinking":"2+2=4"}}}}`)

	ev := DecodeLine(line)
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.Done {
		t.Fatal("unexpected done")
	}
	se := ev.Envelope.RawEvents.Event
	if se == nil {
		t.Fatal("nested event is nil")
	}
	if se.Type != "content_block_delta" {
		t.Fatalf("type: got %q want %q", se.Type, "content_block_delta")
	}
	if se.Delta == nil || se.Delta.Type != "thinking_delta" {
		t.Fatalf("delta: got %+v", se.Delta)
	}
	if se.Delta.Thinking != "2+2=4" {
		t.Fatalf("thinking: got %q", se.Delta.Thinking)
	}
}

func TestDecodeLine_BlockStartWithSignature(t *testing.T) {
	line := []byte(`data: {"rawEvents":{"event":{"type":"content_block_start","index":0,"content_block":{"type":"thinking","signature":"c2ln"}}}}`)

	ev := DecodeLine(line)
	if ev == nil || ev.Envelope == nil {
		t.Fatal("expected an envelope")
	}
	se := ev.Envelope.RawEvents.Event
	if se.ContentBlock == nil {
		t.Fatal("content_block is nil")
	}
	if se.ContentBlock.Type != "thinking" {
		t.Fatalf("block type: got %q", se.ContentBlock.Type)
	}
	if se.ContentBlock.Signature != "c2ln" {
		t.Fatalf("signature: got %q", se.ContentBlock.Signature)
	}
}

func TestDecodeLine_ContentSnapshot(t *testing.T) {
	line := []byte(`data: {"content":[{"type":"thinking","thinking":"partial","signature":"abcdef"},{"type":"redacted_thinking","data":"opaque-bytes"}]}`)

	ev := DecodeLine(line)
	if ev == nil || ev.Envelope == nil {
		t.Fatal("expected an envelope")
	}
	if len(ev.Envelope.Content) != 2 {
		t.Fatalf("content blocks: got %d want 2", len(ev.Envelope.Content))
	}
	if ev.Envelope.Content[0].Signature != "abcdef" {
		t.Fatalf("snapshot signature: got %q", ev.Envelope.Content[0].Signature)
	}
	if ev.Envelope.Content[1].Data != "opaque-bytes" {
		t.Fatalf("redacted data: got %q", ev.Envelope.Content[1].Data)
	}
}

func TestDecodeLine_Done(t *testing.T) {
	ev := DecodeLine([]byte("data: [DONE]"))
	if ev == nil || !ev.Done {
		t.Fatalf("expected done, got %+v", ev)
	}
	if ev.Envelope != nil {
		t.Fatal("done event must carry no envelope")
	}
}

func TestDecodeLine_SkippedLines(t *testing.T) {
	for _, tc := range []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"whitespace", "   \t "},
		{"no prefix", `{"rawEvents":{}}`},
		{"event field", "event: message"},
		{"missing space", "data:{}"},
		{"malformed json", "data: {not json"},
		{"bare array", "data: [1,2,3]"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if ev := DecodeLine([]byte(tc.line)); ev != nil {
				t.Fatalf("expected nil, got %+v", ev)
			}
		})
	}
}

func TestDecodeLine_Idempotent(t *testing.T) {
	line := []byte(`data: {"rawEvents":{"event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}}}`)

	a := DecodeLine(line)
	b := DecodeLine(line)
	if a == nil || b == nil {
		t.Fatal("expected events")
	}
	if a.Envelope.RawEvents.Event.Delta.Text != b.Envelope.RawEvents.Event.Delta.Text {
		t.Fatal("decode is not idempotent")
	}
}

func TestDecodeLine_UnknownEnvelopeStillDecodes(t *testing.T) {
	ev := DecodeLine([]byte(`data: {"ping":true}`))
	if ev == nil || ev.Envelope == nil {
		t.Fatal("unknown envelope shapes must still decode")
	}
	if ev.Envelope.RawEvents.Event != nil || len(ev.Envelope.Content) != 0 {
		t.Fatalf("expected empty envelope, got %+v", ev.Envelope)
	}
}

func TestReader_SkipsNoiseAndEnds(t *testing.T) {
	body := strings.Join([]string{
		"",
		"event: message",
		`data: {"rawEvents":{"event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"a"}}}}`,
		"data: {broken",
		`data: {"rawEvents":{"event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"b"}}}}`,
		"data: [DONE]",
	}, "\n")

	r := NewReader(strings.NewReader(body))

	var texts []string
	for {
		ev, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if ev.Done {
			break
		}
		texts = append(texts, ev.Envelope.RawEvents.Event.Delta.Text)
	}
	if len(texts) != 2 || texts[0] != "a" || texts[1] != "b" {
		t.Fatalf("texts: got %v", texts)
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after done, got %v", err)
	}
}

func TestReader_EOFWithoutDone(t *testing.T) {
	r := NewReader(strings.NewReader(`data: {"content":[]}` + "\n"))
	ev, err := r.Next()
	if err != nil || ev == nil {
		t.Fatalf("Next: ev=%v err=%v", ev, err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF on connection close, got %v", err)
	}
}
