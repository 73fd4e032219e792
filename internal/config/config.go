package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort             = 8080
	defaultQdrantURL        = "http://localhost:6333"
	defaultCollection       = "documents"
	defaultTopK             = 3
	defaultRetrieverTimeout = 10
	defaultEmbeddingModel   = "text-embedding-3-small"
	defaultEmbedProvider    = "openai"
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Aliases   map[string]AliasTarget    `yaml:"aliases"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Retriever RetrieverConfig           `yaml:"retriever"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AliasTarget resolves a model alias to a concrete provider/model pair.
type AliasTarget struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
}

// ProviderConfig captures routing info for an upstream provider. API keys
// never live in the file; they come from {PROVIDER}_API_KEY environment
// variables.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
}

// RetrieverConfig configures the vector store retrieval path.
type RetrieverConfig struct {
	QdrantURL      string          `yaml:"qdrant_url"`
	Collection     string          `yaml:"collection"`
	TopK           int             `yaml:"top_k"`
	TimeoutSeconds int             `yaml:"timeout_seconds"`
	Embedding      EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig names the provider and model used to embed queries and
// document chunks.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Load reads YAML configuration from disk, applies defaults and validates
// the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Retriever.QdrantURL == "" {
		c.Retriever.QdrantURL = defaultQdrantURL
	}
	if c.Retriever.Collection == "" {
		c.Retriever.Collection = defaultCollection
	}
	if c.Retriever.TopK == 0 {
		c.Retriever.TopK = defaultTopK
	}
	if c.Retriever.TimeoutSeconds == 0 {
		c.Retriever.TimeoutSeconds = defaultRetrieverTimeout
	}
	if c.Retriever.Embedding.Provider == "" {
		c.Retriever.Embedding.Provider = defaultEmbedProvider
	}
	if c.Retriever.Embedding.Model == "" {
		c.Retriever.Embedding.Model = defaultEmbeddingModel
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	if len(c.Aliases) == 0 {
		return fmt.Errorf("aliases: at least one model alias must be configured")
	}

	for alias, target := range c.Aliases {
		if strings.TrimSpace(alias) == "" {
			return fmt.Errorf("aliases: alias name must not be empty")
		}
		if strings.TrimSpace(target.Provider) == "" {
			return fmt.Errorf("alias %q: provider must not be empty", alias)
		}
		if strings.TrimSpace(target.Model) == "" {
			return fmt.Errorf("alias %q: model must not be empty", alias)
		}
	}

	for name, provider := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("providers: provider name must not be empty")
		}
		if strings.TrimSpace(provider.BaseURL) == "" {
			return fmt.Errorf("provider %s: base_url must not be empty", name)
		}
	}

	if c.Retriever.TopK < 0 {
		return fmt.Errorf("retriever.top_k must not be negative, got %d", c.Retriever.TopK)
	}
	if c.Retriever.TimeoutSeconds < 0 {
		return fmt.Errorf("retriever.timeout_seconds must not be negative, got %d", c.Retriever.TimeoutSeconds)
	}

	return nil
}
