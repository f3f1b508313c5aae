package simulator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hicap-labs/thinkprobe/internal/api"
	"github.com/hicap-labs/thinkprobe/internal/chat"
	"github.com/hicap-labs/thinkprobe/internal/probe"
	"github.com/hicap-labs/thinkprobe/internal/stream"
	"github.com/hicap-labs/thinkprobe/internal/transcript"
)

func TestServer_DefaultScriptPassesProbe(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	client := api.NewClient(srv.URL+CompletionsPath, "any")
	res := probe.Exchange(context.Background(), client,
		[]chat.Message{chat.System("sys"), chat.User("hello")},
		probe.Options{Model: "claude-sonnet-4.5", Budget: 2500})

	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if !res.Passed {
		t.Fatalf("simulated turn must pass: %+v", res)
	}
	if !res.SignaturePresent || len(res.Signature) < probe.MinSignatureLength {
		t.Fatalf("signature = %q", res.Signature)
	}
	if res.AnswerText == "" {
		t.Fatal("no answer streamed")
	}
}

func TestServer_RejectsWrongKey(t *testing.T) {
	srv := httptest.NewServer(New(Config{APIKey: "right"}).Handler())
	defer srv.Close()

	client := api.NewClient(srv.URL+CompletionsPath, "wrong")
	res := probe.Exchange(context.Background(), client,
		[]chat.Message{chat.User("hi")}, probe.Options{Model: "m", Budget: 1024})

	se, ok := api.IsStatus(res.Err)
	if !ok || se.Code != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 status error", res.Err)
	}
}

func TestServer_RequiresStreamingRequests(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+CompletionsPath, "application/json",
		strings.NewReader(`{"stream":false,"model":"m"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_ScriptedFailureStatus(t *testing.T) {
	srv := httptest.NewServer(New(Config{
		Script: &Script{Status: http.StatusTooManyRequests, Body: "slow down"},
	}).Handler())
	defer srv.Close()

	client := api.NewClient(srv.URL+CompletionsPath, "k")
	res := probe.Exchange(context.Background(), client,
		[]chat.Message{chat.User("hi")}, probe.Options{Model: "m", Budget: 1024})

	se, ok := api.IsStatus(res.Err)
	if !ok || se.Code != http.StatusTooManyRequests || !strings.Contains(se.Body, "slow down") {
		t.Fatalf("err = %v", res.Err)
	}
}

func TestScriptFromRecord_ReplaysLastAssistantTurn(t *testing.T) {
	rec := &transcript.Record{
		Resumable: true,
		Messages: []chat.Message{
			chat.System("sys"),
			chat.User("q1"),
			chat.Assistant(chat.Reasoning("old turn", "OLDSIG"), chat.Answer("old answer")),
			chat.User("q2"),
			chat.Assistant(
				chat.Reasoning(strings.Repeat("think ", 20), "REPLAYSIG"),
				chat.Redacted("opaque-bytes"),
				chat.Answer("final answer"),
			),
		},
	}

	script, err := ScriptFromRecord(rec)
	if err != nil {
		t.Fatalf("ScriptFromRecord: %v", err)
	}

	srv := httptest.NewServer(New(Config{Script: script}).Handler())
	defer srv.Close()

	var redactedSeen int
	sink := &countingSink{onRedacted: func() { redactedSeen++ }}
	client := api.NewClient(srv.URL+CompletionsPath, "k")
	res := probe.Exchange(context.Background(), client,
		[]chat.Message{chat.User("replay")},
		probe.Options{Model: "m", Budget: 2500, Sink: sink})

	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.ReasoningText != strings.Repeat("think ", 20) {
		t.Fatalf("reasoning = %q", res.ReasoningText)
	}
	if res.Signature != "REPLAYSIG" {
		t.Fatalf("signature = %q, want the replayed turn's token", res.Signature)
	}
	if res.AnswerText != "final answer" {
		t.Fatalf("answer = %q", res.AnswerText)
	}
	if len(res.Redacted) != 1 || res.Redacted[0] != "opaque-bytes" || redactedSeen != 1 {
		t.Fatalf("redacted = %v (sink saw %d)", res.Redacted, redactedSeen)
	}
}

func TestScriptFromRecord_NoAssistantTurn(t *testing.T) {
	rec := &transcript.Record{Messages: []chat.Message{chat.User("alone")}}
	if _, err := ScriptFromRecord(rec); err == nil {
		t.Fatal("expected error for record with nothing to replay")
	}
}

func TestLoadScript_StrictDecode(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "ok.json")
	if err := os.WriteFile(good, []byte(`{"lines":["{}"],"delay_ms":5}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadScript(good)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if len(s.Lines) != 1 || s.DelayMS != 5 {
		t.Fatalf("script = %+v", s)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"linez":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScript(bad); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

type countingSink struct {
	onRedacted func()
}

func (c *countingSink) ReasoningFragment(string) {}
func (c *countingSink) AnswerFragment(string)    {}
func (c *countingSink) RedactedBlock() {
	if c.onRedacted != nil {
		c.onRedacted()
	}
}

var _ stream.Sink = (*countingSink)(nil)
