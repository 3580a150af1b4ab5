package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/temirov/mtc/internal/output"
	"github.com/temirov/mtc/internal/services/api"
	"github.com/temirov/mtc/internal/services/stream"
	"github.com/temirov/mtc/internal/transfer"
	"github.com/temirov/mtc/internal/utils"
)

const (
	blacklistPageTitle = "Wikipedia:MTC!/Blacklist"
	hiddenCategory     = "Category:Hidden"
	sourceText         = "{{Information|description=A cat|source=Camera}}\n{{Self|cc-by-sa-3.0}}\nA sleeping cat."
)

type fakePage struct {
	Title      string           `json:"title"`
	Missing    bool             `json:"missing,omitempty"`
	Links      []map[string]any `json:"links,omitempty"`
	Categories []map[string]any `json:"categories,omitempty"`
	ImageInfo  []map[string]any `json:"imageinfo,omitempty"`
	Revisions  []map[string]any `json:"revisions,omitempty"`
}

// newFakeWiki answers every query the pipeline sends; it stands in for both wikis.
// Files are missing (free destination titles), everything else exists.
func newFakeWiki(testingInstance *testing.T) *httptest.Server {
	testingInstance.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		query := request.URL.Query()
		var pages []fakePage
		for _, title := range strings.Split(query.Get("titles"), "|") {
			if title == "" {
				continue
			}
			current := fakePage{Title: title}
			switch query.Get("prop") {
			case "links":
				if title == blacklistPageTitle {
					current.Links = []map[string]any{{"title": hiddenCategory}}
				} else {
					current.Missing = true
				}
			case "categories":
				category := "Category:Cats"
				if strings.Contains(title, "Blocked") {
					category = hiddenCategory
				}
				current.Categories = []map[string]any{{"title": category}}
			case "duplicatefiles":
			case "imageinfo":
				current.ImageInfo = []map[string]any{{
					"timestamp": "2010-01-02T03:04:05Z",
					"user":      "Alice",
					"width":     640,
					"height":    480,
					"comment":   "first upload",
					"url":       "https://upload.example/" + title,
				}}
			case "revisions":
				current.Revisions = []map[string]any{{"slots": map[string]any{"main": map[string]any{"content": sourceText}}}}
			default:
				current.Missing = strings.HasPrefix(title, "File:")
			}
			pages = append(pages, current)
		}
		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]any{"query": map[string]any{"pages": pages}})
	}))
	testingInstance.Cleanup(server.Close)
	return server
}

func runCommand(testingInstance *testing.T, workingDirectory string, arguments ...string) (string, string, error) {
	testingInstance.Helper()
	var stdout, stderr bytes.Buffer
	rootCommand := newRootCommand(&stdout, &stderr, workingDirectory)
	err := execute(context.Background(), rootCommand, arguments)
	return stdout.String(), stderr.String(), err
}

func isolateHome(testingInstance *testing.T) string {
	testingInstance.Helper()
	homeDirectory := testingInstance.TempDir()
	testingInstance.Setenv("HOME", homeDirectory)
	testingInstance.Setenv("USERPROFILE", homeDirectory)
	return homeDirectory
}

func TestGenerateLocalPipeline(testingInstance *testing.T) {
	isolateHome(testingInstance)
	wiki := newFakeWiki(testingInstance)
	workingDirectory := testingInstance.TempDir()
	ledgerPath := filepath.Join(workingDirectory, "state", "ledger.db")
	configuration := fmt.Sprintf("source:\n  endpoint: %s\ndestination:\n  endpoint: %s\ntransfer:\n  blacklist_page: %q\n  whitelist_page: \"Wikipedia:MTC!/Whitelist\"\nledger:\n  path: %s\n",
		wiki.URL, wiki.URL, blacklistPageTitle, ledgerPath)
	if err := os.WriteFile(filepath.Join(workingDirectory, utils.ConfigFileName), []byte(configuration), 0o600); err != nil {
		testingInstance.Fatalf("write config: %v", err)
	}

	stdout, _, err := runCommand(testingInstance, workingDirectory, "generate", "--format", "json", "File:Cat.jpg", "File:Blocked.jpg")
	if err != nil {
		testingInstance.Fatalf("generate error: %v", err)
	}
	var document output.Document
	if decodeErr := json.Unmarshal([]byte(stdout), &document); decodeErr != nil {
		testingInstance.Fatalf("decode output: %v\n%s", decodeErr, stdout)
	}
	if len(document.Generated) != 1 {
		testingInstance.Fatalf("expected one generated description, got %+v", document)
	}
	generated := document.Generated[0]
	if generated.SourceTitle != "File:Cat.jpg" || generated.DestinationTitle != "File:Cat.jpg" {
		testingInstance.Fatalf("unexpected titles: %+v", generated)
	}
	for _, fragment := range []string{"A cat", "author={{User at project|Alice|w|en}}", "A sleeping cat.", "first upload", "{{Subst:Unc}}"} {
		if !strings.Contains(generated.Description, fragment) {
			testingInstance.Fatalf("description lacks %q:\n%s", fragment, generated.Description)
		}
	}
	expectedSkipped := []stream.SkipEvent{{Title: "File:Blocked.jpg", Reason: stream.SkipReasonCategory}}
	if diff := cmp.Diff(expectedSkipped, document.Skipped); diff != "" {
		testingInstance.Fatalf("skipped mismatch (-want +got):\n%s", diff)
	}
	if _, statErr := os.Stat(ledgerPath); statErr != nil {
		testingInstance.Fatalf("expected ledger at %s: %v", ledgerPath, statErr)
	}

	secondStdout, _, secondErr := runCommand(testingInstance, workingDirectory, "generate", "--format=json", "File:Cat.jpg")
	if secondErr != nil {
		testingInstance.Fatalf("second generate error: %v", secondErr)
	}
	var secondDocument output.Document
	if decodeErr := json.Unmarshal([]byte(secondStdout), &secondDocument); decodeErr != nil {
		testingInstance.Fatalf("decode second output: %v", decodeErr)
	}
	expectedLedgerSkip := []stream.SkipEvent{{Title: "File:Cat.jpg", Reason: stream.SkipReasonLedger}}
	if diff := cmp.Diff(expectedLedgerSkip, secondDocument.Skipped); diff != "" {
		testingInstance.Fatalf("second run skipped mismatch (-want +got):\n%s", diff)
	}
	if len(secondDocument.Generated) != 0 {
		testingInstance.Fatalf("expected nothing generated on the second run, got %+v", secondDocument.Generated)
	}
}

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, request transfer.Request) (transfer.Report, error) {
	report := transfer.Report{RunID: "remote"}
	for _, title := range request.Titles {
		report.Generated = append(report.Generated, stream.GeneratedEvent{
			SourceTitle:      title,
			DestinationTitle: title,
			Description:      "remote description",
		})
	}
	return report, nil
}

func TestGenerateDelegatesToRemoteServer(testingInstance *testing.T) {
	isolateHome(testingInstance)
	server := httptest.NewServer(api.NewServer(api.Config{}, stubRunner{}, nil).Handler())
	defer server.Close()

	stdout, stderr, err := runCommand(testingInstance, testingInstance.TempDir(), "generate", "--api", server.URL, "File:Remote.png")
	if err != nil {
		testingInstance.Fatalf("generate error: %v", err)
	}
	separator := strings.Repeat("-", 50)
	expected := separator + "\nFile:Remote.png -> File:Remote.png\nremote description\n" + separator + "\n"
	if diff := cmp.Diff(expected, stdout); diff != "" {
		testingInstance.Fatalf("stdout mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stderr, "Generated 1 of 1 requested") {
		testingInstance.Fatalf("expected summary on stderr, got %q", stderr)
	}
}

func TestGenerateRejectsUnknownFormat(testingInstance *testing.T) {
	isolateHome(testingInstance)
	_, _, err := runCommand(testingInstance, testingInstance.TempDir(), "generate", "--format", "xml", "File:A.png")
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		testingInstance.Fatalf("expected format error, got %v", err)
	}
	_, _, argumentsErr := runCommand(testingInstance, testingInstance.TempDir(), "generate")
	if argumentsErr == nil {
		testingInstance.Fatalf("expected an error without inputs")
	}
}

func TestVersionFlag(testingInstance *testing.T) {
	originalVersion := utils.Version
	utils.Version = "v1.2.3"
	defer func() { utils.Version = originalVersion }()

	testCases := []struct {
		name      string
		arguments []string
	}{
		{name: "root", arguments: []string{"--version"}},
		{name: "subcommand", arguments: []string{"init", "--version"}},
	}
	for _, testCase := range testCases {
		testingInstance.Run(testCase.name, func(subTest *testing.T) {
			workingDirectory := subTest.TempDir()
			stdout, _, err := runCommand(subTest, workingDirectory, testCase.arguments...)
			if err != nil {
				subTest.Fatalf("unexpected error: %v", err)
			}
			if stdout != "mtc version: v1.2.3\n" {
				subTest.Fatalf("unexpected output %q", stdout)
			}
			if _, statErr := os.Stat(filepath.Join(workingDirectory, utils.ConfigFileName)); !os.IsNotExist(statErr) {
				subTest.Fatalf("init ran despite --version")
			}
		})
	}
}

func TestInitCommand(testingInstance *testing.T) {
	homeDirectory := isolateHome(testingInstance)
	workingDirectory := testingInstance.TempDir()

	stdout, _, err := runCommand(testingInstance, workingDirectory, "init")
	if err != nil {
		testingInstance.Fatalf("init error: %v", err)
	}
	localPath := filepath.Join(workingDirectory, utils.ConfigFileName)
	if !strings.Contains(stdout, localPath) {
		testingInstance.Fatalf("expected %s in output, got %q", localPath, stdout)
	}
	if _, _, repeatErr := runCommand(testingInstance, workingDirectory, "init"); repeatErr == nil {
		testingInstance.Fatalf("expected an error when the file exists")
	}
	if _, _, forceErr := runCommand(testingInstance, workingDirectory, "init", "--force", "yes"); forceErr != nil {
		testingInstance.Fatalf("init --force error: %v", forceErr)
	}
	if _, _, globalErr := runCommand(testingInstance, workingDirectory, "init", "--global"); globalErr != nil {
		testingInstance.Fatalf("init --global error: %v", globalErr)
	}
	if _, statErr := os.Stat(filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)); statErr != nil {
		testingInstance.Fatalf("expected global configuration: %v", statErr)
	}
}

func TestServeAnswersHealthChecks(testingInstance *testing.T) {
	isolateHome(testingInstance)
	wiki := newFakeWiki(testingInstance)
	var stdout, stderr bytes.Buffer
	app := &application{stdout: &stdout, stderr: &stderr}
	configuration, loadErr := app.loadConfiguration()
	if loadErr != nil {
		testingInstance.Fatalf("load configuration: %v", loadErr)
	}
	configuration.Source.Endpoint = wiki.URL
	configuration.Destination.Endpoint = wiki.URL
	configuration.Server.Address = "127.0.0.1:0"
	configuration.Ledger.Path = filepath.Join(testingInstance.TempDir(), "ledger.db")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addressCh := make(chan string, 1)
	errorCh := make(chan error, 1)
	go func() {
		errorCh <- app.runServe(ctx, configuration, func(address string) { addressCh <- address })
	}()

	select {
	case address := <-addressCh:
		response, getErr := http.Get("http://" + address + "/healthz")
		if getErr != nil {
			testingInstance.Fatalf("get: %v", getErr)
		}
		response.Body.Close()
		if response.StatusCode != http.StatusOK {
			testingInstance.Fatalf("unexpected status %d", response.StatusCode)
		}
	case runErr := <-errorCh:
		testingInstance.Fatalf("server stopped early: %v", runErr)
	case <-time.After(5 * time.Second):
		testingInstance.Fatalf("server did not start")
	}

	cancel()
	if runErr := <-errorCh; runErr != nil {
		testingInstance.Fatalf("serve error: %v", runErr)
	}
	if !strings.Contains(stderr.String(), "listening on http://") {
		testingInstance.Fatalf("expected listening message, got %q", stderr.String())
	}
}
