package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ragchat-router/internal/config"
	"ragchat-router/internal/models"
	"ragchat-router/internal/registry"
)

const (
	maxBodyBytes        = 1 << 20  // 1 MiB for JSON bodies
	maxUploadBytes      = 32 << 20 // 32 MiB for PDF uploads
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 120 * time.Second
	idleTimeout         = 120 * time.Second
)

// ChatService processes one chat invocation into a response envelope.
type ChatService interface {
	Chat(ctx context.Context, req models.ChatRequest) models.ChatResult
}

// Ingestor processes an uploaded document into the vector collection.
type Ingestor interface {
	IngestPDF(ctx context.Context, path string) (int, error)
}

type Server struct {
	cfg      config.Config
	chat     ChatService
	registry *registry.Registry
	ingestor Ingestor
	app      *echo.Echo
	address  string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, chat ChatService, reg *registry.Registry, ingestor Ingestor) (*Server, error) {
	if chat == nil {
		return nil, errors.New("chat service must not be nil")
	}
	if reg == nil {
		return nil, errors.New("registry must not be nil")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:      cfg,
		chat:     chat,
		registry: reg,
		ingestor: ingestor,
		app:      e,
		address:  fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/healthz", s.handleHealth)
	s.app.GET("/models", s.handleModels)
	s.app.POST("/chat", s.handleChat)
	s.app.POST("/ingest", s.handleIngest)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(c echo.Context) error {
	aliases, err := s.registry.Aliases()
	if err != nil {
		if errors.Is(err, registry.ErrConfigUnavailable) {
			return requestError{
				Status:  http.StatusNotFound,
				Message: "model configuration not found",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: err.Error(),
			Type:    "server_error",
		}
	}
	return c.JSON(http.StatusOK, aliases)
}

// chatHTTPRequest is the wire shape of a chat invocation. Unset parameters
// fall back to the documented defaults; use_rag defaults to true.
type chatHTTPRequest struct {
	Messages    []models.Message `json:"messages"`
	ModelAlias  string           `json:"model_alias"`
	Temperature *float64         `json:"temperature"`
	TopP        *float64         `json:"top_p"`
	MaxTokens   *int             `json:"max_tokens"`
	Seed        *int             `json:"seed"`
	Stream      *bool            `json:"stream"`
	JSONMode    *bool            `json:"json_mode"`
	Timeout     *int             `json:"timeout"`
	UseRAG      *bool            `json:"use_rag"`
}

func (r chatHTTPRequest) toChatRequest() models.ChatRequest {
	params := models.DefaultParams()
	if r.Temperature != nil {
		params.Temperature = *r.Temperature
	}
	if r.TopP != nil {
		params.TopP = *r.TopP
	}
	if r.MaxTokens != nil {
		params.MaxTokens = *r.MaxTokens
	}
	if r.Seed != nil {
		params.Seed = r.Seed
	}
	if r.Stream != nil {
		params.Stream = *r.Stream
	}
	if r.JSONMode != nil {
		params.JSONMode = *r.JSONMode
	}
	if r.Timeout != nil {
		params.Timeout = time.Duration(*r.Timeout) * time.Second
	}

	useRAG := true
	if r.UseRAG != nil {
		useRAG = *r.UseRAG
	}

	return models.ChatRequest{
		Messages:   r.Messages,
		ModelAlias: r.ModelAlias,
		Params:     params,
		UseRAG:     useRAG,
	}
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatHTTPRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	if strings.TrimSpace(req.ModelAlias) == "" {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "model_alias is required",
			Type:    "invalid_request_error",
		}
	}

	// Failures are part of the envelope contract, not HTTP errors.
	result := s.chat.Chat(c.Request().Context(), req.toChatRequest())
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleIngest(c echo.Context) error {
	if s.ingestor == nil {
		return requestError{
			Status:  http.StatusServiceUnavailable,
			Message: "document ingestion is not configured",
			Type:    "server_error",
		}
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "a PDF file upload named 'file' is required",
			Type:    "invalid_request_error",
		}
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "only PDF files are accepted",
			Type:    "invalid_request_error",
		}
	}
	if fileHeader.Size > maxUploadBytes {
		return requestError{
			Status:  http.StatusRequestEntityTooLarge,
			Message: "uploaded file exceeds the size limit",
			Type:    "invalid_request_error",
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmpDir, err := os.MkdirTemp("", "ingest-*")
	if err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, filepath.Base(fileHeader.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("store upload: %w", err)
	}
	dst.Close()

	chunks, err := s.ingestor.IngestPDF(c.Request().Context(), path)
	if err != nil {
		return requestError{
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("document ingestion failed: %v", err),
			Type:    "upstream_error",
		}
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("document %q processed successfully", fileHeader.Filename),
		"chunks":  chunks,
	})
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType, code string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	payload.Error.Code = code
	return c.JSON(status, payload)
}

func errorHandler(err error, c echo.Context) {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type, reqErr.Code)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, he.Code, fmt.Sprint(he.Message), "invalid_request_error", "")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error", "")
}
