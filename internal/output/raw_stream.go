package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/temirov/mtc/internal/services/stream"
)

const (
	separatorWidth         = 50
	generatedHeaderFormat  = "%s -> %s\n"
	skippedLineFormat      = "Skipped %s: %s\n"
	failureLineFormat      = "Failed %s: %s\n"
	summaryLineFormat      = "Generated %d of %d requested (%d skipped, %d failed)\n"
	failedTitlesLineFormat = "Failed with %d errors: %s\n"
)

var separatorLine = strings.Repeat("-", separatorWidth)

type rawStreamRenderer struct {
	stdout       io.Writer
	stderr       io.Writer
	summary      *stream.SummaryEvent
	failedTitles []string
}

// NewRawStreamRenderer prints every description between dashed rules as soon as it arrives.
func NewRawStreamRenderer(stdout, stderr io.Writer) StreamRenderer {
	return &rawStreamRenderer{stdout: stdout, stderr: stderr}
}

func (renderer *rawStreamRenderer) Handle(event stream.Event) error {
	switch event.Kind {
	case stream.EventKindGenerated:
		if event.Generated != nil && renderer.stdout != nil {
			_, err := fmt.Fprintf(renderer.stdout, "%s\n"+generatedHeaderFormat+"%s\n%s\n",
				separatorLine,
				event.Generated.SourceTitle,
				event.Generated.DestinationTitle,
				event.Generated.Description,
				separatorLine,
			)
			return err
		}
	case stream.EventKindSkipped:
		if event.Skipped != nil && renderer.stderr != nil {
			_, err := fmt.Fprintf(renderer.stderr, skippedLineFormat, event.Skipped.Title, event.Skipped.Reason)
			return err
		}
	case stream.EventKindFailure:
		if event.Failure != nil {
			renderer.failedTitles = append(renderer.failedTitles, event.Failure.Title)
			if renderer.stderr != nil {
				_, err := fmt.Fprintf(renderer.stderr, failureLineFormat, event.Failure.Title, event.Failure.Message)
				return err
			}
		}
	case stream.EventKindWarning:
		if event.Message != nil && renderer.stderr != nil {
			_, err := fmt.Fprintln(renderer.stderr, event.Message.Message)
			return err
		}
	case stream.EventKindSummary:
		renderer.summary = event.Summary
	}
	return nil
}

func (renderer *rawStreamRenderer) Flush() error {
	if renderer.stderr == nil {
		return nil
	}
	if renderer.summary != nil {
		if _, err := fmt.Fprintf(renderer.stderr, summaryLineFormat,
			renderer.summary.Generated, renderer.summary.Requested, renderer.summary.Skipped, renderer.summary.Failed); err != nil {
			return err
		}
	}
	if len(renderer.failedTitles) > 0 {
		_, err := fmt.Fprintf(renderer.stderr, failedTitlesLineFormat, len(renderer.failedTitles), strings.Join(renderer.failedTitles, ", "))
		return err
	}
	return nil
}
