package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat-router/internal/config"
)

func writeModelFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveKnownAlias(t *testing.T) {
	path := writeModelFile(t, `
aliases:
  fast-chat:
    provider: groq
    model: llama-3.1-8b
  deep-chat:
    provider: openai
    model: gpt-4o
`)

	reg := NewFromFile(path)

	target, err := reg.Resolve("fast-chat")
	require.NoError(t, err)
	assert.Equal(t, Target{Provider: "groq", Model: "llama-3.1-8b"}, target)

	target, err = reg.Resolve("deep-chat")
	require.NoError(t, err)
	assert.Equal(t, Target{Provider: "openai", Model: "gpt-4o"}, target)
}

func TestResolveUnknownAlias(t *testing.T) {
	path := writeModelFile(t, `
aliases:
  fast-chat:
    provider: groq
    model: llama-3.1-8b
`)

	_, err := NewFromFile(path).Resolve("missing-alias")
	assert.ErrorIs(t, err, ErrAliasNotFound)
}

func TestResolveMissingConfigFile(t *testing.T) {
	reg := NewFromFile(filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := reg.Resolve("fast-chat")
	assert.ErrorIs(t, err, ErrConfigUnavailable)

	// The failure is cached; the alias table is equally unavailable.
	_, err = reg.Aliases()
	assert.ErrorIs(t, err, ErrConfigUnavailable)
}

func TestResolveMalformedConfig(t *testing.T) {
	path := writeModelFile(t, "aliases: [not, a, mapping")

	_, err := NewFromFile(path).Resolve("fast-chat")
	assert.ErrorIs(t, err, ErrConfigUnavailable)
}

func TestResolveIsIdempotent(t *testing.T) {
	path := writeModelFile(t, `
aliases:
  fast-chat:
    provider: groq
    model: llama-3.1-8b
`)

	reg := NewFromFile(path)

	first, err := reg.Resolve("fast-chat")
	require.NoError(t, err)

	// Deleting the file must not change an already-loaded registry.
	require.NoError(t, os.Remove(path))

	second, err := reg.Resolve("fast-chat")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAliasesReturnsCopy(t *testing.T) {
	path := writeModelFile(t, `
aliases:
  fast-chat:
    provider: groq
    model: llama-3.1-8b
`)

	reg := NewFromFile(path)

	table, err := reg.Aliases()
	require.NoError(t, err)
	table["fast-chat"] = Target{Provider: "tampered", Model: "tampered"}

	resolved, err := reg.Resolve("fast-chat")
	require.NoError(t, err)
	assert.Equal(t, "groq", resolved.Provider)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Config{
		Aliases: map[string]config.AliasTarget{
			"fast-chat": {Provider: "groq", Model: "llama-3.1-8b"},
		},
	}

	reg := NewFromConfig(cfg)

	target, err := reg.Resolve("fast-chat")
	require.NoError(t, err)
	assert.Equal(t, "llama-3.1-8b", target.Model)
}
