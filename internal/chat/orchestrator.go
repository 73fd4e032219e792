// Package chat implements the request orchestration core: compose the
// outgoing messages, resolve the model alias, invoke the completion
// gateway, and normalize the outcome into the stable response envelope.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ragchat-router/internal/composer"
	"ragchat-router/internal/gateway"
	"ragchat-router/internal/models"
	"ragchat-router/internal/registry"
)

// requestIDLength truncates the UUID to a short correlation token, enough
// to grep a run log without dragging full UUIDs through every line.
const requestIDLength = 8

// Composer assembles the outgoing message sequence.
type Composer interface {
	Compose(ctx context.Context, messages []models.Message, useRAG bool) ([]models.Message, error)
}

// Orchestrator processes chat invocations end to end. It is stateless per
// request and safe for concurrent use.
type Orchestrator struct {
	composer Composer
	resolver registry.Resolver
	gateway  gateway.Completer
}

// New wires the orchestration core.
func New(c Composer, r registry.Resolver, g gateway.Completer) *Orchestrator {
	return &Orchestrator{
		composer: c,
		resolver: r,
		gateway:  g,
	}
}

// Chat runs one chat invocation to completion. It never returns an error:
// every failure is normalized into a ChatResult envelope with a stable
// code, and the request identifier is always set.
func (o *Orchestrator) Chat(ctx context.Context, req models.ChatRequest) models.ChatResult {
	requestID := uuid.NewString()[:requestIDLength]

	messages, err := o.composer.Compose(ctx, req.Messages, req.UseRAG)
	if err != nil {
		return failure(requestID, "", "", err)
	}

	target, err := o.resolver.Resolve(req.ModelAlias)
	if err != nil {
		return failure(requestID, "", "", err)
	}

	resp, err := o.gateway.Complete(ctx, target.Provider, target.Model, messages, req.Params)
	if err != nil {
		return failure(requestID, target.Provider, target.Model, err)
	}

	result := success(requestID, resp)
	slog.Info("chat completed",
		"request_id", requestID,
		"alias", req.ModelAlias,
		"provider", result.Provider,
		"model", result.Model,
		"latency_ms", result.LatencyMS,
		"total_tokens", resp.Usage.TotalTokens,
	)
	return result
}

// success converts a validated provider response into the envelope. The
// effective provider is the prefix of the reported model identifier up to
// the first slash; the remainder is the effective model.
func success(requestID string, resp *gateway.Response) models.ChatResult {
	provider := resp.Model
	model := resp.Model
	if idx := strings.IndexByte(resp.Model, '/'); idx >= 0 {
		provider = resp.Model[:idx]
		model = resp.Model[idx+1:]
	}

	output := resp.OutputText
	usage := resp.Usage

	return models.ChatResult{
		OutputText:    &output,
		Provider:      provider,
		Model:         model,
		Usage:         &usage,
		LatencyMS:     resp.Latency.Milliseconds(),
		CostEstimated: nil,
		RequestID:     requestID,
	}
}

// failure maps an orchestration error onto the envelope. Provider and model
// are filled only when known at the point of failure.
func failure(requestID, provider, model string, err error) models.ChatResult {
	result := models.ChatResult{
		Provider:  provider,
		Model:     model,
		RequestID: requestID,
		Error: &models.ErrorInfo{
			Code:    classify(err),
			Message: err.Error(),
		},
	}

	slog.Warn("chat failed",
		"request_id", requestID,
		"code", string(result.Error.Code),
		"error", err,
	)
	return result
}

// classify maps orchestration errors onto the stable code taxonomy, in
// priority order.
func classify(err error) models.ErrorCode {
	switch {
	case errors.Is(err, composer.ErrInvalidInput):
		return models.CodeInvalidInput
	case errors.Is(err, registry.ErrConfigUnavailable):
		return models.CodeConfigError
	case errors.Is(err, registry.ErrAliasNotFound):
		return models.CodeAliasNotFound
	case errors.Is(err, gateway.ErrCallTimeout):
		return models.CodeTimeout
	case errors.Is(err, gateway.ErrUnauthorized):
		return models.CodeAuth
	default:
		return models.CodeProvider
	}
}
