// Package stream folds decoded stream events into the structured outcome of
// one turn: reasoning text, answer text, the reasoning block's integrity
// signature, and any redacted blocks.
package stream

import (
	"slices"
	"strings"

	"github.com/hicap-labs/thinkprobe/internal/sse"
)

// Accumulator consumes the decoded events of a single stream and builds one
// TurnResult. It is not safe for concurrent use; a stream has exactly one
// consumer.
type Accumulator struct {
	sink   Sink
	budget int

	reasoning strings.Builder
	answer    strings.Builder
	// signature is replaced wholesale when a longer value shows up in a
	// block start or a content snapshot, and extended by signature_delta
	// fragments. A plain string keeps both operations simple.
	signature string
	redacted  []string

	reasoningObserved bool
	eventCount        int
	done              bool
}

// NewAccumulator returns an accumulator for one turn. sink may be nil.
func NewAccumulator(budget int, sink Sink) *Accumulator {
	return &Accumulator{sink: sink, budget: budget}
}

// Apply folds one decoded event into the turn. It returns false once the
// stream has ended; callers stop feeding events then. Applying to a
// finished accumulator is a no-op.
func (a *Accumulator) Apply(ev *sse.Event) bool {
	if a.done || ev == nil {
		return !a.done
	}
	if ev.Done {
		a.done = true
		return false
	}
	env := ev.Envelope
	if env == nil {
		return true
	}

	// Every envelope is real traffic, whether or not it matches a shape we
	// know.
	a.eventCount++

	if se := env.RawEvents.Event; se != nil {
		a.applyStreamEvent(se)
	}

	// Content snapshots restate blocks cumulatively and may carry a fuller
	// signature than the deltas seen so far, or redacted blocks that never
	// appear as deltas.
	for i := range env.Content {
		a.applySnapshotBlock(&env.Content[i])
	}
	return true
}

func (a *Accumulator) applyStreamEvent(se *sse.StreamEvent) {
	switch se.Type {
	case "content_block_start":
		if se.ContentBlock == nil {
			return
		}
		switch se.ContentBlock.Type {
		case "thinking":
			a.reasoningObserved = true
			a.adoptSignature(se.ContentBlock.Signature)
		case "redacted_thinking":
			a.addRedacted(se.ContentBlock.Data)
		}
	case "content_block_delta":
		if se.Delta == nil {
			return
		}
		switch se.Delta.Type {
		case "thinking_delta":
			if se.Delta.Thinking != "" {
				a.reasoning.WriteString(se.Delta.Thinking)
				if a.sink != nil {
					a.sink.ReasoningFragment(se.Delta.Thinking)
				}
			}
		case "text_delta":
			if se.Delta.Text != "" {
				a.answer.WriteString(se.Delta.Text)
				if a.sink != nil {
					a.sink.AnswerFragment(se.Delta.Text)
				}
			}
		case "signature_delta":
			// Signatures may arrive as an additive run of fragments,
			// concatenated in arrival order.
			a.signature += se.Delta.Signature
		}
	}
}

func (a *Accumulator) applySnapshotBlock(b *sse.Block) {
	switch b.Type {
	case "thinking":
		a.reasoningObserved = true
		a.adoptSignature(b.Signature)
	case "redacted_thinking":
		a.addRedacted(b.Data)
	}
}

// adoptSignature replaces the held signature only with a strictly longer
// one. Snapshots are cumulative restatements; taking the longest value seen
// avoids overwriting a complete token with a truncated earlier copy. The
// upstream protocol does not document this, so it is a compatibility
// assumption rather than a verified contract.
func (a *Accumulator) adoptSignature(sig string) {
	if sig != "" && len(sig) > len(a.signature) {
		a.signature = sig
	}
}

// addRedacted records an opaque block once. Restatements across snapshots
// are common; equality on the payload is the dedup key.
func (a *Accumulator) addRedacted(data string) {
	if slices.Contains(a.redacted, data) {
		return
	}
	a.redacted = append(a.redacted, data)
	if a.sink != nil {
		a.sink.RedactedBlock()
	}
}

// Done reports whether the stream-end sentinel has been seen.
func (a *Accumulator) Done() bool { return a.done }

// Result freezes the accumulator and returns the turn outcome. err is the
// abnormal termination cause, nil on a clean end. The partial result is
// returned on every path.
func (a *Accumulator) Result(err error) TurnResult {
	a.done = true
	return TurnResult{
		Passed:            a.reasoningObserved && a.reasoning.Len() > 0,
		ReasoningObserved: a.reasoningObserved,
		ReasoningText:     a.reasoning.String(),
		AnswerText:        a.answer.String(),
		Signature:         a.signature,
		SignaturePresent:  a.signature != "",
		Redacted:          slices.Clone(a.redacted),
		EventCount:        a.eventCount,
		RequestedBudget:   a.budget,
		Err:               err,
	}
}
