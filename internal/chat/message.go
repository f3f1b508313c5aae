// Package chat models the conversation that the upstream API consumes:
// messages whose assistant turns carry ordered content blocks, and the
// session state machine that appends completed turns in the exact wire
// shape the next request must replay.
package chat

import (
	"encoding/json"
	"fmt"
)

// Role identifies a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind discriminates assistant content blocks. Values are the wire
// type tags so the model serializes without translation.
type BlockKind string

const (
	BlockReasoning BlockKind = "thinking"
	BlockRedacted  BlockKind = "redacted_thinking"
	BlockAnswer    BlockKind = "text"
)

// Block is one unit of assistant output.
type Block struct {
	Kind BlockKind
	// Text holds reasoning text for BlockReasoning and answer text for
	// BlockAnswer.
	Text string
	// Signature is the reasoning block's integrity token, optional.
	Signature string
	// Data is the opaque payload of a redacted block, preserved
	// byte-for-byte.
	Data string
}

// Reasoning builds a reasoning block. sig may be empty.
func Reasoning(text, sig string) Block {
	return Block{Kind: BlockReasoning, Text: text, Signature: sig}
}

// Redacted builds an opaque reasoning block.
func Redacted(data string) Block {
	return Block{Kind: BlockRedacted, Data: data}
}

// Answer builds a final-answer block.
func Answer(text string) Block {
	return Block{Kind: BlockAnswer, Text: text}
}

// wireBlock is the on-wire form shared by requests and durable records.
type wireBlock struct {
	Type      string `json:"type"`
	Thinking  string `json:"thinking,omitempty"`
	Text      string `json:"text,omitempty"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`
}

// MarshalJSON renders the block in wire shape: reasoning text travels under
// the "thinking" key, answer text under "text".
func (b Block) MarshalJSON() ([]byte, error) {
	w := wireBlock{Type: string(b.Kind), Signature: b.Signature, Data: b.Data}
	switch b.Kind {
	case BlockReasoning:
		w.Thinking = b.Text
	default:
		w.Text = b.Text
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts any wire block, keeping the fields this engine
// understands. Unknown types keep their tag and round-trip their known
// fields.
func (b *Block) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b.Kind = BlockKind(w.Type)
	b.Signature = w.Signature
	b.Data = w.Data
	if b.Kind == BlockReasoning {
		b.Text = w.Thinking
	} else {
		b.Text = w.Text
	}
	return nil
}

// Message is one conversation entry. System and user messages carry plain
// string content; assistant messages carry content blocks whenever at least
// one block exists. An assistant message restored from an old record may
// carry plain text instead.
type Message struct {
	Role   Role
	Text   string
	Blocks []Block
}

// System builds a plain-string system message.
func System(text string) Message { return Message{Role: RoleSystem, Text: text} }

// User builds a plain-string user message.
func User(text string) Message { return Message{Role: RoleUser, Text: text} }

// Assistant builds an assistant message from content blocks.
func Assistant(blocks ...Block) Message {
	return Message{Role: RoleAssistant, Blocks: blocks}
}

type wireMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON renders the message in the shape the upstream API requires:
// string content unless blocks are present.
func (m Message) MarshalJSON() ([]byte, error) {
	var content any
	if len(m.Blocks) > 0 {
		content = m.Blocks
	} else {
		content = m.Text
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: raw})
}

// UnmarshalJSON accepts both content forms.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Role = w.Role
	m.Text = ""
	m.Blocks = nil
	if len(w.Content) == 0 {
		return nil
	}
	if w.Content[0] == '[' {
		return json.Unmarshal(w.Content, &m.Blocks)
	}
	if err := json.Unmarshal(w.Content, &m.Text); err != nil {
		return fmt.Errorf("message content is neither string nor block list: %w", err)
	}
	return nil
}
