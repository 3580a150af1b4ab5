package stream

import (
	"context"
	"errors"
	"strings"
	"time"
)

var errNilChannel = errors.New("stream: event channel is nil")

// Emitter stamps events with the schema version, run id, and emission time
// before sending them. It is safe for concurrent use.
type Emitter struct {
	ctx   context.Context
	out   chan<- Event
	runID string
	now   func() time.Time
}

func NewEmitter(ctx context.Context, out chan<- Event, runID string) *Emitter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Emitter{ctx: ctx, out: out, runID: runID, now: time.Now}
}

// Send delivers event unless the context is done first.
func (emitter *Emitter) Send(event Event) error {
	if emitter.out == nil {
		return errNilChannel
	}
	event.Version = SchemaVersion
	if event.RunID == "" {
		event.RunID = emitter.runID
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = emitter.now().UTC()
	}
	select {
	case <-emitter.ctx.Done():
		return emitter.ctx.Err()
	case emitter.out <- event:
		return nil
	}
}

func (emitter *Emitter) Generated(generated GeneratedEvent) error {
	return emitter.Send(Event{Kind: EventKindGenerated, Title: generated.SourceTitle, Generated: &generated})
}

func (emitter *Emitter) Skipped(title string, reason SkipReason) error {
	return emitter.Send(Event{Kind: EventKindSkipped, Title: title, Skipped: &SkipEvent{Title: title, Reason: reason}})
}

func (emitter *Emitter) Failure(title string, failure error) error {
	return emitter.Send(Event{Kind: EventKindFailure, Title: title, Failure: &FailureEvent{Title: title, Message: failure.Error()}})
}

// Warn sends a warning event; empty messages are dropped.
func (emitter *Emitter) Warn(title string, message string) error {
	trimmed := strings.TrimRight(message, "\n")
	if trimmed == "" {
		return nil
	}
	return emitter.Send(Event{Kind: EventKindWarning, Title: title, Message: &LogEvent{Level: "warning", Message: trimmed}})
}
