package chat

import (
	"errors"
	"strings"
	"testing"

	"github.com/hicap-labs/thinkprobe/internal/stream"
)

func TestSession_LinkBuildsBlocksInFixedOrder(t *testing.T) {
	s := NewSession("sys")
	if err := s.Submit("question"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	err := s.Link(stream.TurnResult{
		ReasoningText:    "R",
		AnswerText:       "A",
		Signature:        "sig-value",
		SignaturePresent: true,
		Redacted:         []string{"X"},
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 3 {
		t.Fatalf("messages: got %d want 3", len(msgs))
	}
	last := msgs[2]
	if last.Role != RoleAssistant || len(last.Blocks) != 3 {
		t.Fatalf("assistant message: %+v", last)
	}
	if last.Blocks[0].Kind != BlockReasoning || last.Blocks[0].Text != "R" || last.Blocks[0].Signature != "sig-value" {
		t.Fatalf("block 0: %+v", last.Blocks[0])
	}
	if last.Blocks[1].Kind != BlockRedacted || last.Blocks[1].Data != "X" {
		t.Fatalf("block 1: %+v", last.Blocks[1])
	}
	if last.Blocks[2].Kind != BlockAnswer || last.Blocks[2].Text != "A" {
		t.Fatalf("block 2: %+v", last.Blocks[2])
	}
}

func TestSession_RollbackRestoresHistoryAndCount(t *testing.T) {
	s := NewSession("sys")
	if err := s.Submit("first"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Link(stream.TurnResult{AnswerText: "ok"}); err != nil {
		t.Fatalf("Link: %v", err)
	}

	msgsBefore := s.Len()
	turnsBefore := s.TurnCount()

	if err := s.Submit("doomed"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if s.Len() != msgsBefore {
		t.Fatalf("messages: got %d want %d", s.Len(), msgsBefore)
	}
	if s.TurnCount() != turnsBefore {
		t.Fatalf("turn count: got %d want %d", s.TurnCount(), turnsBefore)
	}
	if n := len(s.Signatures()); n != 1 {
		t.Fatalf("ledger: got %d entries want 1", n)
	}
}

func TestSession_LedgerBoundHoldsAcrossMixedTurns(t *testing.T) {
	s := NewSession("sys")
	for i := 0; i < 6; i++ {
		if err := s.Submit("turn"); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if i%2 == 0 {
			if err := s.Link(stream.TurnResult{ReasoningText: "r", AnswerText: "a"}); err != nil {
				t.Fatalf("Link: %v", err)
			}
		} else {
			if err := s.Rollback(); err != nil {
				t.Fatalf("Rollback: %v", err)
			}
		}
		if len(s.Signatures()) > s.TurnCount() {
			t.Fatalf("ledger bound violated: %d signatures, %d turns",
				len(s.Signatures()), s.TurnCount())
		}
	}

	sigs := s.Signatures()
	if len(sigs) != 3 {
		t.Fatalf("ledger: got %d want 3", len(sigs))
	}
	for i := 1; i < len(sigs); i++ {
		if sigs[i].Turn <= sigs[i-1].Turn {
			t.Fatalf("ledger turns not strictly increasing: %+v", sigs)
		}
	}
}

func TestSession_EmptyTurnAppendsNoAssistantMessage(t *testing.T) {
	s := NewSession("sys")
	if err := s.Submit("q"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Link(stream.TurnResult{}); err != nil {
		t.Fatalf("Link: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages: got %d want 2 (system + user)", len(msgs))
	}
	if msgs[1].Role != RoleUser {
		t.Fatalf("last message: %+v", msgs[1])
	}
	// The turn still completed, so the ledger records it.
	sigs := s.Signatures()
	if len(sigs) != 1 || sigs[0].Valid {
		t.Fatalf("ledger: %+v", sigs)
	}
}

func TestSession_LedgerEntryFields(t *testing.T) {
	sig := strings.Repeat("s", 80)
	s := NewSession("sys")
	if err := s.Submit("q"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	err := s.Link(stream.TurnResult{
		ReasoningText:    "r",
		Signature:        sig,
		SignaturePresent: true,
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	recs := s.Signatures()
	if len(recs) != 1 {
		t.Fatalf("ledger: got %d", len(recs))
	}
	rec := recs[0]
	if rec.Turn != 1 || !rec.Valid {
		t.Fatalf("record: %+v", rec)
	}
	if rec.Length != 80 {
		t.Fatalf("length: got %d want 80", rec.Length)
	}
	if len(rec.Preview) != 50 || rec.Preview != sig[:50] {
		t.Fatalf("preview: got %q", rec.Preview)
	}
}

func TestSession_OneTurnInFlight(t *testing.T) {
	s := NewSession("sys")
	if err := s.Submit("a"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Submit("b"); !errors.Is(err, ErrTurnInFlight) {
		t.Fatalf("second Submit: got %v", err)
	}
	if err := s.Link(stream.TurnResult{AnswerText: "x"}); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := s.Link(stream.TurnResult{}); !errors.Is(err, ErrNoTurnInFlight) {
		t.Fatalf("Link outside turn: got %v", err)
	}
	if err := s.Rollback(); !errors.Is(err, ErrNoTurnInFlight) {
		t.Fatalf("Rollback outside turn: got %v", err)
	}
}

func TestSession_ClearResetsToSystemMessage(t *testing.T) {
	s := NewSession("sys prompt")
	if err := s.Submit("q"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Link(stream.TurnResult{ReasoningText: "r", SignaturePresent: true, Signature: "s"}); err != nil {
		t.Fatalf("Link: %v", err)
	}

	s.Clear()
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Role != RoleSystem || msgs[0].Text != "sys prompt" {
		t.Fatalf("after clear: %+v", msgs)
	}
	if s.TurnCount() != 0 || len(s.Signatures()) != 0 {
		t.Fatalf("counters not reset: turns=%d sigs=%d", s.TurnCount(), len(s.Signatures()))
	}
}

func TestSession_RestoreKeepsStateAndClearUsesNewPrompt(t *testing.T) {
	msgs := []Message{
		System("old prompt"),
		User("hi"),
		Assistant(Answer("hello")),
	}
	ledger := []SignatureRecord{{Turn: 1, Valid: false}}
	s := Restore("new prompt", msgs, ledger, 1)

	if s.Len() != 3 || s.TurnCount() != 1 || len(s.Signatures()) != 1 {
		t.Fatalf("restore: len=%d turns=%d sigs=%d", s.Len(), s.TurnCount(), len(s.Signatures()))
	}
	got := s.Messages()
	if got[0].Text != "old prompt" {
		t.Fatalf("restored system message: %+v", got[0])
	}

	s.Clear()
	if m := s.Messages(); m[0].Text != "new prompt" {
		t.Fatalf("clear must seed the configured prompt: %+v", m[0])
	}
}
