package router

import "github.com/splicehq/splice/proto"

// OutcomeKind discriminates the three shapes Invoke can resolve to
// (spec.md §4.5 "InvokeOutcome").
type OutcomeKind int

const (
	OutcomeResult OutcomeKind = iota
	OutcomeError
	OutcomeStream
)

// Outcome is the result of one invocation. Exactly one of the
// kind-specific field groups is populated, selected by Kind.
type Outcome struct {
	Kind OutcomeKind

	// OutcomeResult
	Result     []byte
	DurationUS uint64

	// OutcomeError
	Code    uint16
	ErrKind proto.ErrorKind
	Message string
	Details []byte

	// OutcomeStream
	Stream *Stream
}

// Stream delivers a StreamStart'd invocation's chunks as they arrive.
// The router's slot reader never blocks on a slow consumer: Events is
// buffered and the reader drops the slot lock before fanning out
// (spec.md §9).
type Stream struct {
	Window uint32
	Events <-chan StreamEvent
}

// StreamEvent is one chunk or the terminal event of a streaming
// invocation.
type StreamEvent struct {
	// set for a StreamChunk event
	Sequence uint64
	Data     []byte

	// set on the terminal event; exactly one of Ended/Errored is true
	Ended       bool
	TotalChunks uint64

	Errored bool
	Code    uint16
	Message string
}

func errOutcome(code uint16, kind proto.ErrorKind, msg string) Outcome {
	return Outcome{Kind: OutcomeError, Code: code, ErrKind: kind, Message: msg}
}
