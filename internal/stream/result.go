package stream

// TurnResult is the immutable outcome of one request/response exchange.
// It is filled by an Accumulator while the stream is open and frozen once
// the turn terminates; every termination path yields a result, with Err set
// only on the abnormal ones.
type TurnResult struct {
	// Passed is true iff a reasoning block was observed and reasoning text
	// is non-empty. It is a verdict about stream content, independent of
	// transport failures; callers treat Err as the turn-level failure.
	Passed bool

	// ReasoningObserved reports that a reasoning block was announced on the
	// stream, even if no reasoning text followed.
	ReasoningObserved bool

	ReasoningText string
	AnswerText    string

	// Signature is the accumulated integrity token for the reasoning
	// block. SignaturePresent reports whether any token content arrived.
	Signature        string
	SignaturePresent bool

	// Redacted holds the opaque payloads of redacted reasoning blocks in
	// arrival order, deduplicated, byte-for-byte as received.
	Redacted []string

	// EventCount counts every envelope seen on the stream, recognized
	// shape or not.
	EventCount int

	// RequestedBudget echoes the reasoning-token budget the request asked
	// for.
	RequestedBudget int

	Err error
}
