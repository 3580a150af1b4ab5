// Package output renders transfer events as raw text, JSON, or YAML.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/temirov/mtc/internal/services/stream"
)

const (
	FormatRaw  = "raw"
	FormatJSON = "json"
	FormatYAML = "yaml"

	unsupportedFormatErrorFormat = "unsupported output format %q (supported: %s)"
)

// SupportedFormats lists the accepted --format values.
var SupportedFormats = []string{FormatRaw, FormatJSON, FormatYAML}

// NewStreamRenderer returns the renderer for format. Results go to stdout and
// diagnostics to stderr.
func NewStreamRenderer(format string, stdout, stderr io.Writer) (StreamRenderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatRaw, "":
		return NewRawStreamRenderer(stdout, stderr), nil
	case FormatJSON:
		return NewJSONStreamRenderer(stdout, stderr), nil
	case FormatYAML:
		return NewYAMLStreamRenderer(stdout, stderr), nil
	}
	return nil, fmt.Errorf(unsupportedFormatErrorFormat, format, strings.Join(SupportedFormats, ", "))
}

// Document is the structured form of a finished batch. Its JSON shape matches
// the generation API response.
type Document struct {
	RunID     string                  `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Generated []stream.GeneratedEvent `json:"generated_text" yaml:"generated_text"`
	Fails     []string                `json:"fails" yaml:"fails"`
	Failures  []stream.FailureEvent   `json:"failures,omitempty" yaml:"failures,omitempty"`
	Skipped   []stream.SkipEvent      `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Summary   *stream.SummaryEvent    `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// documentBuilder accumulates events into a Document and echoes warnings to stderr.
type documentBuilder struct {
	stderr   io.Writer
	document Document
}

func newDocumentBuilder(stderr io.Writer) documentBuilder {
	return documentBuilder{
		stderr: stderr,
		document: Document{
			Generated: []stream.GeneratedEvent{},
			Fails:     []string{},
		},
	}
}

func (builder *documentBuilder) add(event stream.Event) error {
	if builder.document.RunID == "" {
		builder.document.RunID = event.RunID
	}
	switch event.Kind {
	case stream.EventKindGenerated:
		if event.Generated != nil {
			builder.document.Generated = append(builder.document.Generated, *event.Generated)
		}
	case stream.EventKindFailure:
		if event.Failure != nil {
			builder.document.Fails = append(builder.document.Fails, event.Failure.Title)
			builder.document.Failures = append(builder.document.Failures, *event.Failure)
		}
	case stream.EventKindSkipped:
		if event.Skipped != nil {
			builder.document.Skipped = append(builder.document.Skipped, *event.Skipped)
		}
	case stream.EventKindSummary:
		builder.document.Summary = event.Summary
	case stream.EventKindWarning:
		if event.Message != nil && builder.stderr != nil {
			_, err := fmt.Fprintln(builder.stderr, event.Message.Message)
			return err
		}
	}
	return nil
}
