// Package startup gates process initialization: configuration integrity,
// provider credentials and a connectivity probe per provider. Any failure
// here is fatal; the service refuses to start rather than serve with
// unverified configuration.
package startup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"

	"ragchat-router/internal/config"
	"ragchat-router/internal/gateway"
	"ragchat-router/internal/models"
	"ragchat-router/internal/registry"
)

// probeReply is the canned completion body served by the stub transport.
// The probe exercises the full client path (config, credentials, request
// construction, response decoding) without network I/O or token spend.
const probeReply = `{
	"id": "probe",
	"object": "chat.completion",
	"model": "probe",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "pong"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
}`

// Validate checks the alias table, per-provider credentials and the
// completion path for every provider referenced by an alias. It returns a
// non-nil error on the first problem found; callers must treat that as
// fatal.
func Validate(ctx context.Context, cfg config.Config, reg *registry.Registry) error {
	aliases, err := reg.Aliases()
	if err != nil {
		return fmt.Errorf("startup validation: %w", err)
	}
	if len(aliases) == 0 {
		return fmt.Errorf("startup validation: no model aliases configured")
	}

	// One representative model per distinct provider, resolved in a
	// stable order so failures reproduce deterministically.
	probeModels := make(map[string]string)
	for _, target := range aliases {
		if _, seen := probeModels[target.Provider]; !seen {
			probeModels[target.Provider] = target.Model
		}
	}

	providers := make([]string, 0, len(probeModels))
	for provider := range probeModels {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	for _, provider := range providers {
		envVar := gateway.CredentialEnvVar(provider)
		if os.Getenv(envVar) == "" {
			return fmt.Errorf("startup validation: API key for provider %q not found, set %s", provider, envVar)
		}

		if err := probe(ctx, cfg, provider, probeModels[provider]); err != nil {
			return fmt.Errorf("startup validation: provider %q probe failed: %w", provider, err)
		}
		slog.Info("provider probe succeeded", "provider", provider)
	}

	return nil
}

func probe(ctx context.Context, cfg config.Config, provider, model string) error {
	g := gateway.New(cfg.Providers, gateway.WithHTTPClient(&http.Client{
		Transport: probeTransport{},
	}))

	resp, err := g.Complete(ctx, provider, model,
		[]models.Message{{Role: models.RoleUser, Content: "ping"}},
		models.DefaultParams(),
	)
	if err != nil {
		return err
	}
	if resp.OutputText != "pong" {
		return fmt.Errorf("unexpected probe reply %q", resp.OutputText)
	}
	return nil
}

// probeTransport short-circuits every request with a canned completion.
type probeTransport struct{}

func (probeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		req.Body.Close()
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     http.StatusText(http.StatusOK),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(probeReply))),
		Request:    req,
	}, nil
}
