package chat

import (
	"errors"
	"slices"
	"sync"

	"github.com/hicap-labs/thinkprobe/internal/stream"
)

// sigPreviewLen bounds the ledger preview of a signature.
const sigPreviewLen = 50

// ErrTurnInFlight is returned by Submit while a previous turn is still
// awaiting its response.
var ErrTurnInFlight = errors.New("chat: a turn is already in flight")

// ErrNoTurnInFlight is returned by Link and Rollback outside a turn.
var ErrNoTurnInFlight = errors.New("chat: no turn in flight")

// SignatureRecord is one ledger entry, appended when a turn completes and
// never mutated afterwards.
type SignatureRecord struct {
	Turn    int    `json:"turn"`
	Valid   bool   `json:"valid"`
	Length  int    `json:"length"`
	Preview string `json:"preview,omitempty"`
}

// Session holds one conversation: ordered message history, the signature
// ledger, and the turn counter. A turn moves Submit → Link on success or
// Submit → Rollback on failure; at most one turn is in flight at a time.
// Safe for concurrent use, though the protocol itself is sequential.
type Session struct {
	mu           sync.Mutex
	systemPrompt string
	messages     []Message
	ledger       []SignatureRecord
	turnCount    int
	awaiting     bool
}

// NewSession starts a conversation seeded with one system message.
func NewSession(systemPrompt string) *Session {
	return &Session{
		systemPrompt: systemPrompt,
		messages:     []Message{System(systemPrompt)},
	}
}

// Restore rebuilds a session from persisted state. systemPrompt seeds only
// future Clear calls; the restored history keeps its own system message.
func Restore(systemPrompt string, messages []Message, ledger []SignatureRecord, turnCount int) *Session {
	return &Session{
		systemPrompt: systemPrompt,
		messages:     slices.Clone(messages),
		ledger:       slices.Clone(ledger),
		turnCount:    turnCount,
	}
}

// Submit appends the user message and speculatively counts the turn. The
// turn stays in flight until Link or Rollback.
func (s *Session) Submit(userText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaiting {
		return ErrTurnInFlight
	}
	s.messages = append(s.messages, User(userText))
	s.turnCount++
	s.awaiting = true
	return nil
}

// Link completes the in-flight turn: the assistant message is assembled in
// fixed block order (reasoning with its signature if any reasoning text
// exists, then redacted blocks in arrival order byte-for-byte, then the
// answer) and a ledger entry is appended. A turn that produced no blocks
// leaves history with just the user message.
func (s *Session) Link(res stream.TurnResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.awaiting {
		return ErrNoTurnInFlight
	}
	s.awaiting = false

	var blocks []Block
	if res.ReasoningText != "" {
		blocks = append(blocks, Reasoning(res.ReasoningText, res.Signature))
	}
	for _, data := range res.Redacted {
		blocks = append(blocks, Redacted(data))
	}
	if res.AnswerText != "" {
		blocks = append(blocks, Answer(res.AnswerText))
	}
	if len(blocks) > 0 {
		s.messages = append(s.messages, Assistant(blocks...))
	}

	s.ledger = append(s.ledger, SignatureRecord{
		Turn:    s.turnCount,
		Valid:   res.SignaturePresent,
		Length:  len(res.Signature),
		Preview: sigPreview(res.Signature),
	})
	return nil
}

// Rollback abandons the in-flight turn: the user message is removed and the
// turn counter restored, so a failed exchange never leaves an orphaned
// request in history.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.awaiting {
		return ErrNoTurnInFlight
	}
	s.awaiting = false
	s.messages = s.messages[:len(s.messages)-1]
	s.turnCount--
	return nil
}

// Clear resets the conversation to a single system message and empties the
// ledger.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []Message{System(s.systemPrompt)}
	s.ledger = nil
	s.turnCount = 0
	s.awaiting = false
}

// Messages returns a defensive copy of the history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m
		out[i].Blocks = slices.Clone(m.Blocks)
	}
	return out
}

// Signatures returns a defensive copy of the ledger.
func (s *Session) Signatures() []SignatureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ledger)
}

// TurnCount reports the number of user messages successfully round-tripped,
// plus the in-flight turn if one exists.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCount
}

// Len reports the number of messages in history.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func sigPreview(sig string) string {
	if len(sig) > sigPreviewLen {
		return sig[:sigPreviewLen]
	}
	return sig
}
