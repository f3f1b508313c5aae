package stream

// Sink receives live content fragments as a stream is consumed. It exists
// for presentation only; the engine behaves identically with a nil Sink.
// Calls happen inline on the stream-consuming goroutine, so implementations
// must not block.
type Sink interface {
	// ReasoningFragment delivers an increment of reasoning text.
	ReasoningFragment(text string)
	// AnswerFragment delivers an increment of final-answer text.
	AnswerFragment(text string)
	// RedactedBlock signals that an opaque reasoning block arrived.
	RedactedBlock()
}
