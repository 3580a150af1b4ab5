package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/mtc/internal/ledger"
	"github.com/temirov/mtc/internal/services/stream"
	"github.com/temirov/mtc/internal/transfer"
	"github.com/temirov/mtc/internal/utils"
)

const (
	// DefaultClientBatchSize is how many titles each remote call carries.
	DefaultClientBatchSize = 25
	defaultClientTimeout   = 10 * time.Minute
	errorBodyLimit         = 8 * 1024

	remoteFailureMessage    = "remote generation failed"
	unexpectedStatusFormat  = "api: unexpected status %d from %s: %s"
	decodeResponseErrFormat = "api: decode response from %s: %w"
)

// ErrEmptyEndpoint reports a client created without a server URL.
var ErrEmptyEndpoint = errors.New("api endpoint is required")

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Client submits titles to a remote generation server in fixed-size batches.
type Client struct {
	client    httpClient
	endpoint  string
	batchSize int
	logger    *zap.Logger
}

// NewClient creates a Client for the server at endpoint, e.g. http://host:8080.
func NewClient(client httpClient, endpoint string) Client {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return Client{
		client:    client,
		endpoint:  strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		batchSize: DefaultClientBatchSize,
		logger:    zap.NewNop(),
	}
}

func (client Client) WithBatchSize(batchSize int) Client {
	if batchSize <= 0 {
		return client
	}
	client.batchSize = batchSize
	return client
}

func (client Client) WithLogger(logger *zap.Logger) Client {
	if logger == nil {
		return client
	}
	client.logger = logger
	return client
}

// Generate posts one batch.
func (client Client) Generate(ctx context.Context, request GenerateRequest) (GenerateResponse, error) {
	if client.endpoint == "" {
		return GenerateResponse{}, ErrEmptyEndpoint
	}
	body, marshalErr := json.Marshal(request)
	if marshalErr != nil {
		return GenerateResponse{}, marshalErr
	}
	target := client.endpoint + generatePath
	httpRequest, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if requestErr != nil {
		return GenerateResponse{}, requestErr
	}
	httpRequest.Header.Set(headerContentType, mimeTypeJSON)

	response, doErr := client.client.Do(httpRequest)
	if doErr != nil {
		return GenerateResponse{}, doErr
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyLimit))
		return GenerateResponse{}, fmt.Errorf(unexpectedStatusFormat, response.StatusCode, target, strings.TrimSpace(string(snippet)))
	}
	var generateResponse GenerateResponse
	if decodeErr := json.NewDecoder(response.Body).Decode(&generateResponse); decodeErr != nil {
		return GenerateResponse{}, fmt.Errorf(decodeResponseErrFormat, target, decodeErr)
	}
	return generateResponse, nil
}

// Stream submits request in batches and sends the outcome as events, in the
// same shape the local pipeline produces.
func (client Client) Stream(ctx context.Context, request transfer.Request, out chan<- stream.Event) error {
	if request.RunID == "" {
		request.RunID = ledger.NewRunID()
	}
	emitter := stream.NewEmitter(ctx, out, request.RunID)
	requestedTitles := utils.DeduplicateStrings(utils.NonEmptyTrimmed(request.Titles))
	if err := emitter.Send(stream.Event{Kind: stream.EventKindStart}); err != nil {
		return err
	}
	summary := stream.SummaryEvent{Requested: len(requestedTitles)}

	for batchIndex, batch := range utils.ChunkStrings(requestedTitles, client.batchSize) {
		client.logger.Debug("submitting batch", zap.Int("batch", batchIndex), zap.Int("titles", len(batch)))
		response, generateErr := client.Generate(ctx, GenerateRequest{Titles: batch, Force: request.Force})
		if generateErr != nil {
			return generateErr
		}
		for _, generated := range response.Generated {
			summary.Generated++
			if err := emitter.Generated(generated); err != nil {
				return err
			}
		}
		for _, skipped := range response.Skipped {
			summary.Skipped++
			if err := emitter.Skipped(skipped.Title, skipped.Reason); err != nil {
				return err
			}
		}
		reasons := make(map[string]string, len(response.Failures))
		for _, failure := range response.Failures {
			reasons[failure.Title] = failure.Message
		}
		for _, failedTitle := range response.Fails {
			summary.Failed++
			reason := reasons[failedTitle]
			if reason == "" {
				reason = remoteFailureMessage
			}
			if err := emitter.Failure(failedTitle, errors.New(reason)); err != nil {
				return err
			}
		}
	}

	if err := emitter.Send(stream.Event{Kind: stream.EventKindSummary, Summary: &summary}); err != nil {
		return err
	}
	return emitter.Send(stream.Event{Kind: stream.EventKindDone})
}
