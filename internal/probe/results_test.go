package probe

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hicap-labs/thinkprobe/internal/stream"
)

func TestWriteRunResult(t *testing.T) {
	dir := t.TempDir()
	res := stream.TurnResult{
		Passed:            true,
		ReasoningObserved: true,
		ReasoningText:     "thinking here",
		AnswerText:        "answer here",
		Signature:         strings.Repeat("s", 60),
		SignaturePresent:  true,
		EventCount:        7,
		RequestedBudget:   2500,
		Err:               errors.New("late failure"),
	}

	path, err := WriteRunResult(dir, res)
	if err != nil {
		t.Fatalf("WriteRunResult: %v", err)
	}
	if filepath.Base(path) != "thinking_test_results.json" {
		t.Fatalf("path = %q", path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got["passed"] != true || got["thinking_detected"] != true {
		t.Fatalf("verdict fields wrong: %v", got)
	}
	if got["thinking_length"].(float64) != 13 || got["events_count"].(float64) != 7 {
		t.Fatalf("counts wrong: %v", got)
	}
	if got["signature_length"].(float64) != 60 || got["thinking_budget"].(float64) != 2500 {
		t.Fatalf("signature/budget wrong: %v", got)
	}
	if got["error"] != "late failure" {
		t.Fatalf("error field = %v", got["error"])
	}
}

func TestWriteScaleResult_TruncatesContent(t *testing.T) {
	dir := t.TempDir()
	rep := ScaleReport{Runs: []ScaleRun{{
		Budget: 1024,
		Result: stream.TurnResult{
			Passed:        true,
			ReasoningText: strings.Repeat("й", 600),
			AnswerText:    "short",
		},
	}}}

	path, err := WriteScaleResult(dir, rep)
	if err != nil {
		t.Fatalf("WriteScaleResult: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "budget_scaling_") {
		t.Fatalf("path = %q", path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rec scaleRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.Results) != 1 || rec.Results[0].ThinkingLength != len(strings.Repeat("й", 600)) {
		t.Fatalf("record = %+v", rec)
	}
	if got := len([]rune(rec.Results[0].ThinkingContent)); got != contentCap {
		t.Fatalf("stored content runes = %d, want %d", got, contentCap)
	}
	if rec.BudgetsTested[0] != 1024 {
		t.Fatalf("budgets = %v", rec.BudgetsTested)
	}
}

func TestWriteSignatureResult(t *testing.T) {
	dir := t.TempDir()
	res := stream.TurnResult{
		Signature:        strings.Repeat("x", 300),
		SignaturePresent: true,
		ReasoningText:    "r",
	}
	checks := VerifySignature(res)

	path, err := WriteSignatureResult(dir, res, checks)
	if err != nil {
		t.Fatalf("WriteSignatureResult: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rec signatureRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatal(err)
	}
	if !rec.Passed || rec.SignatureLength != 300 {
		t.Fatalf("record = %+v", rec)
	}
	if len(rec.SignaturePreview) != 200 {
		t.Fatalf("preview length = %d, want 200", len(rec.SignaturePreview))
	}
	if !rec.Checks.ValidFormat || !rec.Checks.ReasonableLength {
		t.Fatalf("checks = %+v", rec.Checks)
	}
}
