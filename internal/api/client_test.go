package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hicap-labs/thinkprobe/internal/chat"
)

func TestClient_StreamRequestShapeAndEvents(t *testing.T) {
	var gotBody map[string]any
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s", r.Method)
		}
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"rawEvents":{"event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	stream, err := c.Stream(context.Background(), Request{
		Model:        "claude-sonnet-4.5",
		MaxTokens:    16000,
		BudgetTokens: 2500,
		Messages: []chat.Message{
			chat.System("sys"),
			chat.User("q"),
			chat.Assistant(chat.Reasoning("R", "SIG")),
		},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	ev, err := stream.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Envelope.RawEvents.Event.Delta.Text != "hi" {
		t.Fatalf("event: %+v", ev)
	}
	ev, err = stream.Next()
	if err != nil || !ev.Done {
		t.Fatalf("expected done, got ev=%+v err=%v", ev, err)
	}

	if got := gotHeaders.Get("api-key"); got != "test-key" {
		t.Fatalf("api-key header: got %q", got)
	}
	if got := gotHeaders.Get("Accept"); got != "text/event-stream" {
		t.Fatalf("accept header: got %q", got)
	}
	if got := gotHeaders.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content-type header: got %q", got)
	}

	if gotBody["stream"] != true {
		t.Fatalf("stream flag: got %v", gotBody["stream"])
	}
	if gotBody["model"] != "claude-sonnet-4.5" {
		t.Fatalf("model: got %v", gotBody["model"])
	}
	thinking, _ := gotBody["thinking"].(map[string]any)
	if thinking["type"] != "enabled" || thinking["budget_tokens"] != float64(2500) {
		t.Fatalf("thinking param: got %v", thinking)
	}
	if gotBody["max_tokens"] != float64(16000) {
		t.Fatalf("max_tokens: got %v", gotBody["max_tokens"])
	}

	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages: got %d", len(msgs))
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "sys" {
		t.Fatalf("system message: %v", first)
	}
	last, _ := msgs[2].(map[string]any)
	blocks, _ := last["content"].([]any)
	if len(blocks) != 1 {
		t.Fatalf("assistant blocks: %v", last["content"])
	}
	block, _ := blocks[0].(map[string]any)
	if block["type"] != "thinking" || block["thinking"] != "R" || block["signature"] != "SIG" {
		t.Fatalf("replayed reasoning block: %v", block)
	}
}

func TestClient_NonOKStatusTruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, strings.Repeat("x", 2000))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, err := c.Stream(context.Background(), Request{Model: "m"})
	if err == nil {
		t.Fatal("expected an error")
	}
	statusErr, ok := IsStatus(err)
	if !ok {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if statusErr.Code != http.StatusBadGateway {
		t.Fatalf("code: got %d", statusErr.Code)
	}
	if len(statusErr.Body) != 500 {
		t.Fatalf("body snippet: got %d bytes want 500", len(statusErr.Body))
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, "k")
	_, err := c.Stream(ctx, Request{Model: "m"})
	if !IsTimeout(err) {
		t.Fatalf("expected TimeoutError, got %T: %v", err, err)
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "k")
	_, err := c.Stream(context.Background(), Request{Model: "m"})
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
}

func TestClassify_PassesThroughAndWraps(t *testing.T) {
	orig := &StatusError{Code: 500}
	if got := Classify(orig, 0); got != error(orig) {
		t.Fatalf("classified error must pass through, got %v", got)
	}
	if !IsTimeout(Classify(context.DeadlineExceeded, time.Second)) {
		t.Fatal("deadline exceeded must classify as timeout")
	}
	var transportErr *TransportError
	if !errors.As(Classify(errors.New("boom"), 0), &transportErr) {
		t.Fatal("unknown errors must classify as transport")
	}
}
