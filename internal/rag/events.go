package rag

// EventType identifies one kind of streamed event.
type EventType string

const (
	// EventStatus carries a human-readable progress update emitted
	// while expansion, retrieval, and stitching are in progress.
	EventStatus EventType = "status"

	// EventChunk carries one answer text fragment.
	EventChunk EventType = "chunk"

	// EventSources carries the citation data backing the answer.
	// Emitted exactly once per turn that produced citations.
	EventSources EventType = "sources"

	// EventDone terminates the stream and carries the full response
	// with metrics.
	EventDone EventType = "done"
)

// Event is one element of a turn's streamed output. The sequence is
// finite, ends with a done event, and is not restartable.
type Event struct {
	Type       EventType
	Text       string
	Sources    []SourceGroup
	AllSources []Source
	Result     *AskResponse
	Err        error
}
