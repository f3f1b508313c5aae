// Package transcript persists conversations as JSON records and restores
// them into live sessions. Records written by this engine are always
// resumable; records from older tools may not be, and are reconstructed
// lossily so a session can always be loaded.
package transcript

import (
	"time"

	"github.com/hicap-labs/thinkprobe/internal/chat"
)

// Record is the on-disk shape of a saved conversation.
type Record struct {
	Timestamp    string                 `json:"timestamp"`
	Turns        int                    `json:"turns"`
	MessageCount int                    `json:"message_count"`
	Signatures   []chat.SignatureRecord `json:"signatures"`
	Resumable    bool                   `json:"resumable"`
	// Summary is attached to end-of-session snapshots only.
	Summary  *VerificationSummary `json:"verification_summary,omitempty"`
	Messages []chat.Message       `json:"messages"`
}

// VerificationSummary condenses the ledger for end-of-session records.
type VerificationSummary struct {
	TotalSignatures int  `json:"total_signatures"`
	ValidSignatures int  `json:"valid_signatures"`
	ChainIntact     bool `json:"chain_intact"`
}

// Summarize computes the ledger condensate. An empty ledger counts as an
// intact chain.
func Summarize(sigs []chat.SignatureRecord) *VerificationSummary {
	s := &VerificationSummary{TotalSignatures: len(sigs), ChainIntact: true}
	for _, rec := range sigs {
		if rec.Valid {
			s.ValidSignatures++
		} else {
			s.ChainIntact = false
		}
	}
	return s
}

// Snapshot captures a session as a resumable record. Records produced here
// always carry resumable=true; only externally produced records may not.
func Snapshot(s *chat.Session) *Record {
	msgs := s.Messages()
	return &Record{
		Timestamp:    time.Now().Format(time.RFC3339),
		Turns:        s.TurnCount(),
		MessageCount: len(msgs),
		Signatures:   s.Signatures(),
		Resumable:    true,
		Messages:     msgs,
	}
}

// Restore builds a live session from a record. The reconstruction rule is
// chosen once, by record variant: resumable records restore verbatim,
// everything else goes through the lossy legacy path. systemPrompt is kept
// for later Clear calls; the restored history carries its own system
// message if it had one.
func Restore(r *Record, systemPrompt string) *chat.Session {
	if r.Resumable {
		return restoreFull(r, systemPrompt)
	}
	return restoreStripped(r, systemPrompt)
}

// restoreFull restores messages and ledger exactly as saved. Reasoning
// blocks and their integrity tokens survive, so the upstream accepts the
// replayed history on the next turn.
func restoreFull(r *Record, systemPrompt string) *chat.Session {
	return chat.Restore(systemPrompt, r.Messages, r.Signatures, r.Turns)
}

// restoreStripped rebuilds history from a legacy record. Assistant messages
// keep only their answer blocks; reasoning and redacted blocks are dropped
// because their tokens can no longer be replayed. Assistant messages left
// empty are dropped entirely, other messages pass through unchanged, and
// the ledger restarts at zero. The turn count is kept.
func restoreStripped(r *Record, systemPrompt string) *chat.Session {
	var msgs []chat.Message
	for _, m := range r.Messages {
		if m.Role != chat.RoleAssistant || len(m.Blocks) == 0 {
			msgs = append(msgs, m)
			continue
		}
		var kept []chat.Block
		for _, b := range m.Blocks {
			if b.Kind == chat.BlockAnswer {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			continue
		}
		msgs = append(msgs, chat.Message{Role: chat.RoleAssistant, Blocks: kept})
	}
	return chat.Restore(systemPrompt, msgs, nil, r.Turns)
}

// ValidSignatureCount counts reasoning blocks in the record's history that
// still carry an integrity token.
func (r *Record) ValidSignatureCount() int {
	n := 0
	for _, m := range r.Messages {
		if m.Role != chat.RoleAssistant {
			continue
		}
		for _, b := range m.Blocks {
			if b.Kind == chat.BlockReasoning && b.Signature != "" {
				n++
			}
		}
	}
	return n
}
