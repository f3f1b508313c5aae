// Package simulator serves a local stand-in for the upstream streaming API:
// it answers completion requests with scripted or replayed SSE streams so
// the probe can be exercised without network access or a real key.
package simulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hicap-labs/thinkprobe/internal/chat"
	"github.com/hicap-labs/thinkprobe/internal/transcript"
)

// Script is what the simulator streams for each request. Lines are raw SSE
// payloads without the "data: " prefix; the end sentinel is appended by the
// server. A non-zero Status short-circuits every request with that code.
type Script struct {
	Lines   []string `json:"lines,omitempty"`
	DelayMS int      `json:"delay_ms,omitempty"`
	Status  int      `json:"status,omitempty"`
	Body    string   `json:"body,omitempty"`
}

// LoadScript reads a script file. The format is ours, so unknown keys are
// mistakes and rejected.
func LoadScript(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return nil, fmt.Errorf("%s: trailing data after script", path)
	}
	return &s, nil
}

const replayChunk = 32

// DefaultScript streams a canned passing turn: a reasoning block with an
// integrity token, then an answer.
func DefaultScript() *Script {
	return &Script{Lines: buildTurnLines(
		"Let me work through this question step by step.",
		"VGhpcyBpcyBhIHNpbXVsYXRlZCBzaWduYXR1cmUgdG9rZW4sIGJhc2U2NC1mbGF2b3JlZA==",
		nil,
		"This is a simulated response.",
	)}
}

// ScriptFromRecord replays the last assistant message of a saved
// conversation as a stream: reasoning first, then redacted blocks, then the
// answer, chunked the way a live stream would arrive.
func ScriptFromRecord(r *transcript.Record) (*Script, error) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		m := r.Messages[i]
		if m.Role != chat.RoleAssistant {
			continue
		}
		var reasoning, signature, answer string
		var redacted []string
		if len(m.Blocks) == 0 {
			answer = m.Text
		}
		for _, b := range m.Blocks {
			switch b.Kind {
			case chat.BlockReasoning:
				reasoning = b.Text
				signature = b.Signature
			case chat.BlockRedacted:
				redacted = append(redacted, b.Data)
			case chat.BlockAnswer:
				answer = b.Text
			}
		}
		if reasoning == "" && answer == "" && len(redacted) == 0 {
			continue
		}
		return &Script{Lines: buildTurnLines(reasoning, signature, redacted, answer)}, nil
	}
	return nil, fmt.Errorf("record has no assistant message to replay")
}

func buildTurnLines(reasoning, signature string, redacted []string, answer string) []string {
	var lines []string
	if reasoning != "" {
		lines = append(lines, eventLine(map[string]any{
			"type":          "content_block_start",
			"index":         0,
			"content_block": map[string]any{"type": "thinking"},
		}))
		for _, c := range chunkRunes(reasoning, replayChunk) {
			lines = append(lines, deltaLine("thinking_delta", "thinking", c))
		}
		if signature != "" {
			lines = append(lines, deltaLine("signature_delta", "signature", signature))
		}
	}
	for _, data := range redacted {
		lines = append(lines, eventLine(map[string]any{
			"type":          "content_block_start",
			"content_block": map[string]any{"type": "redacted_thinking", "data": data},
		}))
	}
	for _, c := range chunkRunes(answer, replayChunk) {
		lines = append(lines, deltaLine("text_delta", "text", c))
	}
	return lines
}

func eventLine(event map[string]any) string {
	b, _ := json.Marshal(map[string]any{"rawEvents": map[string]any{"event": event}})
	return string(b)
}

func deltaLine(deltaType, key, value string) string {
	return eventLine(map[string]any{
		"type":  "content_block_delta",
		"delta": map[string]any{"type": deltaType, key: value},
	})
}

func chunkRunes(s string, n int) []string {
	if s == "" {
		return nil
	}
	r := []rune(s)
	var out []string
	for len(r) > n {
		out = append(out, string(r[:n]))
		r = r[n:]
	}
	return append(out, string(r))
}
