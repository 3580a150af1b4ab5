// Package stream carries transfer progress from producers to renderers as typed events.
package stream

import "time"

const SchemaVersion = 1

type EventKind string

const (
	EventKindStart     EventKind = "start"
	EventKindGenerated EventKind = "generated"
	EventKindSkipped   EventKind = "skipped"
	EventKindFailure   EventKind = "failure"
	EventKindWarning   EventKind = "warning"
	EventKindSummary   EventKind = "summary"
	EventKindDone      EventKind = "done"
)

// SkipReason explains why a title was filtered out before generation.
type SkipReason string

const (
	SkipReasonCategory  SkipReason = "category filter"
	SkipReasonDuplicate SkipReason = "duplicate on shared repository"
	SkipReasonLedger    SkipReason = "already generated"
)

type Event struct {
	Version   int       `json:"version" yaml:"version"`
	Kind      EventKind `json:"kind" yaml:"kind"`
	RunID     string    `json:"runId,omitempty" yaml:"runId,omitempty"`
	Title     string    `json:"title,omitempty" yaml:"title,omitempty"`
	EmittedAt time.Time `json:"emittedAt,omitempty" yaml:"emittedAt,omitempty"`

	Generated *GeneratedEvent `json:"generated,omitempty" yaml:"generated,omitempty"`
	Skipped   *SkipEvent      `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Failure   *FailureEvent   `json:"failure,omitempty" yaml:"failure,omitempty"`
	Message   *LogEvent       `json:"message,omitempty" yaml:"message,omitempty"`
	Summary   *SummaryEvent   `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// GeneratedEvent is one finished description together with its destination title.
type GeneratedEvent struct {
	SourceTitle      string `json:"enwp_title" yaml:"enwp_title"`
	DestinationTitle string `json:"com_title" yaml:"com_title"`
	Description      string `json:"desc" yaml:"desc"`
}

type SkipEvent struct {
	Title  string     `json:"title" yaml:"title"`
	Reason SkipReason `json:"reason" yaml:"reason"`
}

type FailureEvent struct {
	Title   string `json:"title" yaml:"title"`
	Message string `json:"message" yaml:"message"`
}

type LogEvent struct {
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`
	Message string `json:"message" yaml:"message"`
}

type SummaryEvent struct {
	Requested int `json:"requested" yaml:"requested"`
	Generated int `json:"generated" yaml:"generated"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`
}
