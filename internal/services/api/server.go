// Package api exposes batch generation over HTTP and calls such a server remotely.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/mtc/internal/services/stream"
	"github.com/temirov/mtc/internal/transfer"
)

const (
	defaultListenAddress    = "127.0.0.1:0"
	defaultShutdownDuration = 5 * time.Second
	defaultMaxTitles        = 50
	maxRequestBytes         = 1 << 20

	generatePath = "/generate"
	healthPath   = "/healthz"
	versionPath  = "/version"

	headerContentType = "Content-Type"
	mimeTypeJSON      = "application/json"
)

var (
	errNoTitles      = errors.New("titles must not be empty")
	errTooManyTitles = errors.New("too many titles")
)

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Titles []string `json:"titles"`
	Force  bool     `json:"force"`
}

// GenerateResponse is the body returned by POST /generate. Fails lists the
// titles that could not be generated; Failures carries the reasons.
type GenerateResponse struct {
	RunID     string                  `json:"run_id,omitempty"`
	Generated []stream.GeneratedEvent `json:"generated_text"`
	Fails     []string                `json:"fails"`
	Failures  []stream.FailureEvent   `json:"failures,omitempty"`
	Skipped   []stream.SkipEvent      `json:"skipped,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// BatchRunner runs one batch to completion.
type BatchRunner interface {
	Run(ctx context.Context, request transfer.Request) (transfer.Report, error)
}

// Config defines runtime options for the Server.
type Config struct {
	Address         string
	Version         string
	MaxTitles       int
	ShutdownTimeout time.Duration
}

// Server serves the generation API.
type Server struct {
	config Config
	runner BatchRunner
	logger *zap.Logger
}

// NewServer creates a Server with defaults applied.
func NewServer(config Config, runner BatchRunner, logger *zap.Logger) Server {
	if config.Address == "" {
		config.Address = defaultListenAddress
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownDuration
	}
	if config.MaxTitles <= 0 {
		config.MaxTitles = defaultMaxTitles
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Server{config: config, runner: runner, logger: logger}
}

// Handler returns the routed HTTP handler.
func (server Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(server.logRequests)
	router.Get(healthPath, server.handleHealth)
	router.Get(versionPath, server.handleVersion)
	router.Post(generatePath, server.handleGenerate)
	return router
}

// Run starts the server and blocks until ctx is canceled. notify receives the
// bound address once the listener is active.
func (server Server) Run(ctx context.Context, notify func(string)) error {
	listener, listenErr := net.Listen("tcp", server.config.Address)
	if listenErr != nil {
		return fmt.Errorf("listen on %s: %w", server.config.Address, listenErr)
	}
	actualAddress := listener.Addr().String()

	httpServer := &http.Server{Handler: server.Handler()}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve api: %w", serveErr)
		}
		return nil
	})

	server.logger.Info("api listening", zap.String("address", actualAddress))
	if notify != nil {
		notify(actualAddress)
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.config.ShutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) && !errors.Is(shutdownErr, http.ErrServerClosed) {
			return fmt.Errorf("shutdown api: %w", shutdownErr)
		}
		return nil
	})

	return group.Wait()
}

func (server Server) handleHealth(writer http.ResponseWriter, _ *http.Request) {
	server.writeJSON(writer, http.StatusOK, map[string]string{"status": "ok"})
}

func (server Server) handleVersion(writer http.ResponseWriter, _ *http.Request) {
	server.writeJSON(writer, http.StatusOK, map[string]string{"version": server.config.Version})
}

func (server Server) handleGenerate(writer http.ResponseWriter, request *http.Request) {
	var generateRequest GenerateRequest
	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxRequestBytes))
	if decodeErr := decoder.Decode(&generateRequest); decodeErr != nil {
		server.writeJSON(writer, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decode request body: %v", decodeErr)})
		return
	}
	switch {
	case len(generateRequest.Titles) == 0:
		server.writeJSON(writer, http.StatusBadRequest, errorResponse{Error: errNoTitles.Error()})
		return
	case len(generateRequest.Titles) > server.config.MaxTitles:
		server.writeJSON(writer, http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("%v: %d > %d", errTooManyTitles, len(generateRequest.Titles), server.config.MaxTitles),
		})
		return
	}

	report, runErr := server.runner.Run(request.Context(), transfer.Request{
		Titles: generateRequest.Titles,
		Force:  generateRequest.Force,
	})
	if runErr != nil {
		server.logger.Error("batch failed", zap.Error(runErr))
		server.writeJSON(writer, statusCodeFromError(runErr), errorResponse{Error: runErr.Error()})
		return
	}
	response := GenerateResponse{
		RunID:     report.RunID,
		Generated: report.Generated,
		Fails:     report.FailedTitles(),
		Failures:  report.Failures,
		Skipped:   report.Skipped,
	}
	if response.Generated == nil {
		response.Generated = []stream.GeneratedEvent{}
	}
	server.writeJSON(writer, http.StatusOK, response)
}

func (server Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		started := time.Now()
		wrapped := middleware.NewWrapResponseWriter(writer, request.ProtoMajor)
		next.ServeHTTP(wrapped, request)
		server.logger.Debug("request",
			zap.String("method", request.Method),
			zap.String("path", request.URL.Path),
			zap.Int("status", wrapped.Status()),
			zap.Duration("elapsed", time.Since(started)),
			zap.String("request_id", middleware.GetReqID(request.Context())),
		)
	})
}

func (server Server) writeJSON(writer http.ResponseWriter, statusCode int, payload any) {
	var buffer bytes.Buffer
	if encodeErr := json.NewEncoder(&buffer).Encode(payload); encodeErr != nil {
		writer.Header().Set(headerContentType, mimeTypeJSON)
		writer.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(writer).Encode(errorResponse{Error: fmt.Sprintf("encode response: %v", encodeErr)})
		return
	}
	writer.Header().Set(headerContentType, mimeTypeJSON)
	writer.WriteHeader(statusCode)
	_, _ = writer.Write(buffer.Bytes())
}

// statusCodeFromError maps upstream wiki outages to 502 and everything else to 500.
func statusCodeFromError(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, transfer.ErrOracleUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
