// Package mediawiki talks to the MediaWiki Action API of the source and destination wikis.
package mediawiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultSourceEndpoint is the Action API of English Wikipedia.
	DefaultSourceEndpoint = "https://en.wikipedia.org/w/api.php"
	// DefaultDestinationEndpoint is the Action API of Wikimedia Commons.
	DefaultDestinationEndpoint = "https://commons.wikimedia.org/w/api.php"

	defaultUserAgent = "mtc (https://github.com/temirov/mtc)"
	defaultTimeout   = 30 * time.Second
	defaultBatchSize = 50
	errorBodyLimit   = 8 * 1024
	maximumLimit     = "max"

	parameterAction         = "action"
	parameterFormat         = "format"
	parameterFormatVersion  = "formatversion"
	parameterTitles         = "titles"
	actionQuery             = "query"
	formatJSON              = "json"
	formatVersionTwo        = "2"
	headerUserAgent         = "User-Agent"
	headerAccept            = "Accept"
	acceptJSON              = "application/json"
	unexpectedStatusFormat  = "unexpected status %d for %s: %s"
	decodeResponseErrFormat = "decode response from %s: %w"
)

// ErrPageNotFound reports a page that does not exist on the queried wiki.
var ErrPageNotFound = errors.New("page not found")

// APIError is an error object returned by the Action API.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (apiError *APIError) Error() string {
	return fmt.Sprintf("mediawiki api error %s: %s", apiError.Code, apiError.Info)
}

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Client queries one wiki. Options return modified copies.
type Client struct {
	client    httpClient
	endpoint  string
	userAgent string
	timeout   time.Duration
	batchSize int
	logger    *zap.Logger
}

// NewClient creates a Client for the Action API at endpoint. A nil client uses
// an http.Client with the default timeout.
func NewClient(client httpClient, endpoint string) Client {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if endpoint == "" {
		endpoint = DefaultSourceEndpoint
	}
	return Client{
		client:    client,
		endpoint:  endpoint,
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,
		batchSize: defaultBatchSize,
		logger:    zap.NewNop(),
	}
}

func (client Client) WithUserAgent(agent string) Client {
	if agent == "" {
		return client
	}
	client.userAgent = agent
	return client
}

func (client Client) WithTimeout(duration time.Duration) Client {
	if duration <= 0 {
		return client
	}
	client.timeout = duration
	if clientWithTimeout, ok := client.client.(*http.Client); ok {
		clientWithTimeout.Timeout = duration
	}
	return client
}

// WithBatchSize sets how many titles are sent per request.
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

// Endpoint returns the Action API URL this client queries.
func (client Client) Endpoint() string {
	return client.endpoint
}

// queryAll runs a query and follows continuation until the result is complete.
func (client Client) queryAll(ctx context.Context, parameters url.Values, visit func(queryResult)) error {
	continuation := map[string]string{}
	for {
		requestParameters := url.Values{}
		for key, values := range parameters {
			requestParameters[key] = append([]string(nil), values...)
		}
		for key, value := range continuation {
			requestParameters.Set(key, value)
		}
		response, responseErr := client.get(ctx, requestParameters)
		if responseErr != nil {
			return responseErr
		}
		visit(response.Query)
		if len(response.Continue) == 0 {
			return nil
		}
		continuation = make(map[string]string, len(response.Continue))
		for key, value := range response.Continue {
			continuation[key] = fmt.Sprint(value)
		}
		client.logger.Debug("following continuation", zap.Any("continue", continuation))
	}
}

func (client Client) get(ctx context.Context, parameters url.Values) (apiResponse, error) {
	parameters.Set(parameterAction, actionQuery)
	parameters.Set(parameterFormat, formatJSON)
	parameters.Set(parameterFormatVersion, formatVersionTwo)
	request, requestErr := client.buildRequest(ctx, parameters)
	if requestErr != nil {
		return apiResponse{}, requestErr
	}
	response, responseErr := client.client.Do(request)
	if responseErr != nil {
		return apiResponse{}, responseErr
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyLimit))
		return apiResponse{}, fmt.Errorf(unexpectedStatusFormat, response.StatusCode, client.endpoint, string(body))
	}
	var payload apiResponse
	if decodeErr := json.NewDecoder(response.Body).Decode(&payload); decodeErr != nil {
		return apiResponse{}, fmt.Errorf(decodeResponseErrFormat, client.endpoint, decodeErr)
	}
	if payload.Error != nil {
		return apiResponse{}, payload.Error
	}
	return payload, nil
}

func (client Client) buildRequest(ctx context.Context, parameters url.Values) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parsedURL, parseErr := url.Parse(client.endpoint)
	if parseErr != nil {
		return nil, parseErr
	}
	parsedURL.RawQuery = parameters.Encode()
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if requestErr != nil {
		return nil, requestErr
	}
	if client.userAgent != "" {
		request.Header.Set(headerUserAgent, client.userAgent)
	}
	request.Header.Set(headerAccept, acceptJSON)
	return request, nil
}

func joinTitles(titles []string) string {
	return strings.Join(titles, "|")
}
