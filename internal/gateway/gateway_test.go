package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat-router/internal/config"
	"ragchat-router/internal/models"
)

const successBody = `{
	"id": "cmpl-123",
	"object": "chat.completion",
	"model": "llama-3.1-8b-instant",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "4"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
}`

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Seed           *int `json:"seed"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Stream bool `json:"stream"`
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("TESTPROV_API_KEY", "secret-key")
	return New(map[string]config.ProviderConfig{
		"testprov": {BaseURL: srv.URL + "/v1"},
	})
}

func TestCompleteSuccess(t *testing.T) {
	var authHeader string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(successBody))
	})

	resp, err := g.Complete(context.Background(), "testprov", "llama-3.1-8b",
		[]models.Message{{Role: models.RoleUser, Content: "2+2?"}},
		models.DefaultParams(),
	)
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-key", authHeader)
	assert.Equal(t, "cmpl-123", resp.ID)
	assert.Equal(t, "testprov/llama-3.1-8b-instant", resp.Model)
	assert.Equal(t, "4", resp.OutputText)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Greater(t, resp.Latency, time.Duration(0), "wall clock latency is measured locally")
}

func TestCompleteForwardsSeedAndDisablesStreaming(t *testing.T) {
	var got capturedRequest
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(successBody))
	})

	params := models.DefaultParams()
	params.Stream = true // streaming is out of scope; the gateway forces it off

	_, err := g.Complete(context.Background(), "testprov", "llama-3.1-8b",
		[]models.Message{{Role: models.RoleUser, Content: "2+2?"}}, params)
	require.NoError(t, err)

	require.NotNil(t, got.Seed)
	assert.Equal(t, 42, *got.Seed)
	assert.False(t, got.Stream)
	assert.Equal(t, "llama-3.1-8b", got.Model)
}

func TestCompleteJSONMode(t *testing.T) {
	var got capturedRequest
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(successBody))
	})

	params := models.DefaultParams()
	params.JSONMode = true

	callerMessages := []models.Message{{Role: models.RoleUser, Content: "list primes as json"}}
	_, err := g.Complete(context.Background(), "testprov", "llama-3.1-8b", callerMessages, params)
	require.NoError(t, err)

	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)

	require.Len(t, got.Messages, 2)
	last := got.Messages[len(got.Messages)-1]
	assert.Equal(t, models.RoleSystem, last.Role)
	assert.Equal(t, jsonModeInstruction, last.Content)

	// The instruction is appended to this call's copy only.
	require.Len(t, callerMessages, 1)
}

func TestCompleteAuthError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "Invalid API key", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
	})

	_, err := g.Complete(context.Background(), "testprov", "llama-3.1-8b",
		[]models.Message{{Role: models.RoleUser, Content: "hi"}},
		models.DefaultParams(),
	)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCompleteTimeout(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(successBody))
	})

	params := models.DefaultParams()
	params.Timeout = 50 * time.Millisecond

	_, err := g.Complete(context.Background(), "testprov", "llama-3.1-8b",
		[]models.Message{{Role: models.RoleUser, Content: "hi"}}, params)
	assert.ErrorIs(t, err, ErrCallTimeout)
}

func TestCompleteServerError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "backend melted", "type": "server_error"}}`))
	})

	_, err := g.Complete(context.Background(), "testprov", "llama-3.1-8b",
		[]models.Message{{Role: models.RoleUser, Content: "hi"}},
		models.DefaultParams(),
	)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrCallTimeout)
	assert.Contains(t, err.Error(), "backend melted")
}

func TestCredentialEnvVar(t *testing.T) {
	assert.Equal(t, "GROQ_API_KEY", CredentialEnvVar("groq"))
	assert.Equal(t, "FIREWORKS_AI_API_KEY", CredentialEnvVar("fireworks_ai"))
}

func TestClientForIsCached(t *testing.T) {
	g := New(map[string]config.ProviderConfig{})
	first := g.clientFor("groq")
	second := g.clientFor("groq")
	assert.Same(t, first, second)
}
