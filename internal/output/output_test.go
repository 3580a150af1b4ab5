package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/temirov/mtc/internal/output"
	"github.com/temirov/mtc/internal/services/stream"
)

const testRunID = "run-1"

func batchEvents() []stream.Event {
	return []stream.Event{
		{Kind: stream.EventKindStart, RunID: testRunID},
		{Kind: stream.EventKindSkipped, RunID: testRunID, Title: "File:B.png", Skipped: &stream.SkipEvent{Title: "File:B.png", Reason: stream.SkipReasonCategory}},
		{Kind: stream.EventKindGenerated, RunID: testRunID, Title: "File:A.jpg", Generated: &stream.GeneratedEvent{
			SourceTitle:      "File:A.jpg",
			DestinationTitle: "File:A 10.jpg",
			Description:      "== {{int:filedesc}} ==\n{{Information}}",
		}},
		{Kind: stream.EventKindFailure, RunID: testRunID, Title: "File:F.png", Failure: &stream.FailureEvent{Title: "File:F.png", Message: "no image metadata"}},
		{Kind: stream.EventKindWarning, RunID: testRunID, Message: &stream.LogEvent{Message: "ledger unavailable"}},
		{Kind: stream.EventKindSummary, RunID: testRunID, Summary: &stream.SummaryEvent{Requested: 3, Generated: 1, Skipped: 1, Failed: 1}},
		{Kind: stream.EventKindDone, RunID: testRunID},
	}
}

func render(testingInstance *testing.T, format string) (string, string) {
	testingInstance.Helper()
	var stdout, stderr bytes.Buffer
	renderer, rendererErr := output.NewStreamRenderer(format, &stdout, &stderr)
	if rendererErr != nil {
		testingInstance.Fatalf("NewStreamRenderer(%q) error: %v", format, rendererErr)
	}
	for _, event := range batchEvents() {
		if handleErr := renderer.Handle(event); handleErr != nil {
			testingInstance.Fatalf("Handle(%s) error: %v", event.Kind, handleErr)
		}
	}
	if flushErr := renderer.Flush(); flushErr != nil {
		testingInstance.Fatalf("Flush error: %v", flushErr)
	}
	return stdout.String(), stderr.String()
}

func TestRawStreamRenderer(testingInstance *testing.T) {
	stdout, stderr := render(testingInstance, output.FormatRaw)
	separator := strings.Repeat("-", 50)
	expectedStdout := separator + "\n" +
		"File:A.jpg -> File:A 10.jpg\n" +
		"== {{int:filedesc}} ==\n{{Information}}\n" +
		separator + "\n"
	if diff := cmp.Diff(expectedStdout, stdout); diff != "" {
		testingInstance.Fatalf("stdout mismatch (-want +got):\n%s", diff)
	}
	expectedLines := []string{
		"Skipped File:B.png: category filter",
		"Failed File:F.png: no image metadata",
		"ledger unavailable",
		"Generated 1 of 3 requested (1 skipped, 1 failed)",
		"Failed with 1 errors: File:F.png",
	}
	if diff := cmp.Diff(expectedLines, strings.Split(strings.TrimSpace(stderr), "\n")); diff != "" {
		testingInstance.Fatalf("stderr mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONStreamRenderer(testingInstance *testing.T) {
	stdout, stderr := render(testingInstance, output.FormatJSON)
	var document output.Document
	if decodeErr := json.Unmarshal([]byte(stdout), &document); decodeErr != nil {
		testingInstance.Fatalf("decode: %v\n%s", decodeErr, stdout)
	}
	assertDocument(testingInstance, document)
	if !strings.Contains(stdout, `"generated_text"`) || !strings.Contains(stdout, `"enwp_title": "File:A.jpg"`) {
		testingInstance.Fatalf("unexpected field names:\n%s", stdout)
	}
	if strings.TrimSpace(stderr) != "ledger unavailable" {
		testingInstance.Fatalf("stderr = %q", stderr)
	}
}

func TestYAMLStreamRenderer(testingInstance *testing.T) {
	stdout, _ := render(testingInstance, output.FormatYAML)
	var document output.Document
	if decodeErr := yaml.Unmarshal([]byte(stdout), &document); decodeErr != nil {
		testingInstance.Fatalf("decode: %v\n%s", decodeErr, stdout)
	}
	assertDocument(testingInstance, document)
	if !strings.Contains(stdout, "desc: |-") {
		testingInstance.Fatalf("expected literal block description:\n%s", stdout)
	}
}

func assertDocument(testingInstance *testing.T, document output.Document) {
	testingInstance.Helper()
	expected := output.Document{
		RunID: testRunID,
		Generated: []stream.GeneratedEvent{{
			SourceTitle:      "File:A.jpg",
			DestinationTitle: "File:A 10.jpg",
			Description:      "== {{int:filedesc}} ==\n{{Information}}",
		}},
		Fails:    []string{"File:F.png"},
		Failures: []stream.FailureEvent{{Title: "File:F.png", Message: "no image metadata"}},
		Skipped:  []stream.SkipEvent{{Title: "File:B.png", Reason: stream.SkipReasonCategory}},
		Summary:  &stream.SummaryEvent{Requested: 3, Generated: 1, Skipped: 1, Failed: 1},
	}
	if diff := cmp.Diff(expected, document); diff != "" {
		testingInstance.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyBatchKeepsArrays(testingInstance *testing.T) {
	var stdout bytes.Buffer
	renderer, _ := output.NewStreamRenderer(output.FormatJSON, &stdout, nil)
	if flushErr := renderer.Flush(); flushErr != nil {
		testingInstance.Fatalf("Flush error: %v", flushErr)
	}
	if !strings.Contains(stdout.String(), `"generated_text": []`) || !strings.Contains(stdout.String(), `"fails": []`) {
		testingInstance.Fatalf("expected empty arrays, got:\n%s", stdout.String())
	}
}

func TestNewStreamRendererFormats(testingInstance *testing.T) {
	testCases := []struct {
		name    string
		format  string
		wantErr bool
	}{
		{name: "default is raw", format: ""},
		{name: "case insensitive", format: " JSON "},
		{name: "yaml", format: "yaml"},
		{name: "unknown", format: "xml", wantErr: true},
	}
	for _, testCase := range testCases {
		testingInstance.Run(testCase.name, func(subTest *testing.T) {
			_, rendererErr := output.NewStreamRenderer(testCase.format, &bytes.Buffer{}, &bytes.Buffer{})
			if (rendererErr != nil) != testCase.wantErr {
				subTest.Fatalf("NewStreamRenderer(%q) error = %v, wantErr %v", testCase.format, rendererErr, testCase.wantErr)
			}
		})
	}
}
