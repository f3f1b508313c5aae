package probe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hicap-labs/thinkprobe/internal/stream"
)

// DefaultResultsDir is where result artifacts land unless the caller picks
// another directory.
const DefaultResultsDir = "results"

const resultStamp = "20060102_150405"

// contentCap bounds how much streamed content result artifacts retain.
const contentCap = 500

// RunRecord is the JSON artifact of a single verification run.
type RunRecord struct {
	Timestamp        string `json:"timestamp"`
	Passed           bool   `json:"passed"`
	ThinkingDetected bool   `json:"thinking_detected"`
	ThinkingContent  string `json:"thinking_content"`
	TextContent      string `json:"text_content"`
	Error            string `json:"error"`
	EventsCount      int    `json:"events_count"`
	ThinkingBudget   int    `json:"thinking_budget"`
	ThinkingLength   int    `json:"thinking_length"`
	SignaturePresent bool   `json:"signature_present"`
	SignatureLength  int    `json:"signature_length"`
}

// NewRunRecord renders a turn outcome as its artifact form.
func NewRunRecord(res stream.TurnResult) RunRecord {
	rec := RunRecord{
		Timestamp:        time.Now().Format(time.RFC3339),
		Passed:           res.Passed,
		ThinkingDetected: res.ReasoningObserved,
		ThinkingContent:  res.ReasoningText,
		TextContent:      res.AnswerText,
		EventsCount:      res.EventCount,
		ThinkingBudget:   res.RequestedBudget,
		ThinkingLength:   len(res.ReasoningText),
		SignaturePresent: res.SignaturePresent,
		SignatureLength:  len(res.Signature),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

// WriteRunResult saves a single run's artifact under dir and returns the
// path. The file name is fixed; each run overwrites the last.
func WriteRunResult(dir string, res stream.TurnResult) (string, error) {
	return writeJSON(dir, "thinking_test_results.json", NewRunRecord(res))
}

type scaleRunRecord struct {
	Budget          int    `json:"budget"`
	ThinkingLength  int    `json:"thinking_length"`
	ResponseLength  int    `json:"response_length"`
	Passed          bool   `json:"passed"`
	ThinkingContent string `json:"thinking_content"`
	TextContent     string `json:"text_content"`
}

type scaleRecord struct {
	Timestamp     string           `json:"timestamp"`
	BudgetsTested []int            `json:"budgets_tested"`
	Results       []scaleRunRecord `json:"results"`
}

// WriteScaleResult saves a budget sweep, stamped so sweeps accumulate.
func WriteScaleResult(dir string, rep ScaleReport) (string, error) {
	rec := scaleRecord{Timestamp: time.Now().Format(time.RFC3339)}
	for _, run := range rep.Runs {
		rec.BudgetsTested = append(rec.BudgetsTested, run.Budget)
		rec.Results = append(rec.Results, scaleRunRecord{
			Budget:          run.Budget,
			ThinkingLength:  len(run.Result.ReasoningText),
			ResponseLength:  len(run.Result.AnswerText),
			Passed:          run.Result.Passed,
			ThinkingContent: truncate(run.Result.ReasoningText, contentCap),
			TextContent:     truncate(run.Result.AnswerText, contentCap),
		})
	}
	name := fmt.Sprintf("budget_scaling_%s.json", time.Now().Format(resultStamp))
	return writeJSON(dir, name, rec)
}

type signatureRecord struct {
	Timestamp        string          `json:"timestamp"`
	Passed           bool            `json:"passed"`
	SignaturePresent bool            `json:"signature_present"`
	SignatureLength  int             `json:"signature_length"`
	SignaturePreview string          `json:"signature_preview"`
	Checks           SignatureChecks `json:"checks"`
	ThinkingContent  string          `json:"thinking_content"`
	TextContent      string          `json:"text_content"`
}

// WriteSignatureResult saves a signature analysis, stamped.
func WriteSignatureResult(dir string, res stream.TurnResult, checks SignatureChecks) (string, error) {
	rec := signatureRecord{
		Timestamp:        time.Now().Format(time.RFC3339),
		Passed:           checks.Passed,
		SignaturePresent: checks.Present,
		SignatureLength:  checks.Length,
		SignaturePreview: truncate(res.Signature, 200),
		Checks:           checks,
		ThinkingContent:  truncate(res.ReasoningText, contentCap),
		TextContent:      truncate(res.AnswerText, contentCap),
	}
	name := fmt.Sprintf("signature_test_%s.json", time.Now().Format(resultStamp))
	return writeJSON(dir, name, rec)
}

func writeJSON(dir, name string, v any) (string, error) {
	if dir == "" {
		dir = DefaultResultsDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
