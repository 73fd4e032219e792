// Package gateway dispatches composed message sequences to upstream LLM
// providers through a uniform completion call. All provider SDK error types
// are converted at this boundary; nothing provider-specific escapes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"ragchat-router/internal/config"
	"ragchat-router/internal/models"
)

// ErrCallTimeout indicates the provider call did not complete within the
// requested timeout.
var ErrCallTimeout = errors.New("provider call timed out")

// ErrUnauthorized indicates the provider rejected the configured
// credentials.
var ErrUnauthorized = errors.New("provider rejected credentials")

// jsonModeInstruction is appended as a system turn when structured output
// is requested.
const jsonModeInstruction = "Return the response in JSON format."

// Response is the validated internal schema for a provider raw response.
type Response struct {
	ID         string
	Model      string // canonical "{provider}/{model}" identifier
	OutputText string
	Usage      models.Usage
	Latency    time.Duration
}

// Completer issues one completion call against a resolved provider/model.
type Completer interface {
	Complete(ctx context.Context, provider, model string, messages []models.Message, params models.ChatParams) (*Response, error)
}

// Gateway routes completion calls to per-provider OpenAI-compatible
// clients. Clients are created lazily and cached; the cache is safe for
// concurrent use.
type Gateway struct {
	providers  map[string]config.ProviderConfig
	httpClient *http.Client
	lookupEnv  func(string) string

	mu      sync.RWMutex
	clients map[string]*openai.Client
}

// Option customises gateway construction.
type Option func(*Gateway)

// WithHTTPClient overrides the HTTP client used for provider calls. The
// startup validator uses this to short-circuit connectivity probes.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// New constructs a gateway from the provider section of the configuration.
func New(providers map[string]config.ProviderConfig, opts ...Option) *Gateway {
	g := &Gateway{
		providers: providers,
		lookupEnv: os.Getenv,
		clients:   make(map[string]*openai.Client),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CredentialEnvVar returns the environment variable holding the API key for
// a provider.
func CredentialEnvVar(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

func (g *Gateway) clientFor(provider string) *openai.Client {
	g.mu.RLock()
	client, ok := g.clients[provider]
	g.mu.RUnlock()
	if ok {
		return client
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if client, ok := g.clients[provider]; ok {
		return client
	}

	cfg := openai.DefaultConfig(g.lookupEnv(CredentialEnvVar(provider)))
	if pc, ok := g.providers[provider]; ok && pc.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(pc.BaseURL, "/")
	}
	if g.httpClient != nil {
		cfg.HTTPClient = g.httpClient
	}

	client = openai.NewClientWithConfig(cfg)
	g.clients[provider] = client
	return client
}

// Complete sends the messages to the resolved provider/model and returns
// the validated raw response. The configured timeout bounds the call via
// the context; wall-clock latency is measured around the underlying call
// and is authoritative regardless of what the provider reports.
func (g *Gateway) Complete(ctx context.Context, provider, model string, messages []models.Message, params models.ChatParams) (*Response, error) {
	canonical := provider + "/" + model

	outgoing := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	for _, msg := range messages {
		outgoing = append(outgoing, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(params.Temperature),
		TopP:        float32(params.TopP),
		MaxTokens:   params.MaxTokens,
		Seed:        params.Seed,
		Stream:      false,
	}

	if params.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
		// Appends to this call's copy only; the caller's messages are
		// left untouched.
		outgoing = append(outgoing, openai.ChatCompletionMessage{
			Role:    models.RoleSystem,
			Content: jsonModeInstruction,
		})
	}
	req.Messages = outgoing

	if params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.Timeout)
		defer cancel()
	}

	slog.Debug("dispatching completion",
		"model", canonical,
		"messages", len(outgoing),
		"json_mode", params.JSONMode,
	)

	start := time.Now()
	resp, err := g.clientFor(provider).CreateChatCompletion(ctx, req)
	latency := time.Since(start)

	if err != nil {
		return nil, classifyCallError(canonical, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider %s returned no choices", canonical)
	}

	reported := strings.TrimPrefix(resp.Model, provider+"/")
	if reported == "" {
		reported = model
	}

	return &Response{
		ID:         resp.ID,
		Model:      provider + "/" + reported,
		OutputText: resp.Choices[0].Message.Content,
		Usage: models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency: latency,
	}, nil
}

// classifyCallError maps SDK errors onto the gateway's sentinel errors.
func classifyCallError(canonical string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrCallTimeout, canonical)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %s", ErrUnauthorized, canonical)
		}
		return fmt.Errorf("provider %s: %s", canonical, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %s", ErrUnauthorized, canonical)
		}
	}

	return fmt.Errorf("provider %s request failed: %w", canonical, err)
}
