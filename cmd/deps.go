package cmd

import (
	"fmt"
	"time"

	"ragchat-router/internal/chat"
	"ragchat-router/internal/composer"
	"ragchat-router/internal/config"
	"ragchat-router/internal/gateway"
	"ragchat-router/internal/ingest"
	"ragchat-router/internal/registry"
	"ragchat-router/internal/retriever"
)

// components is the wired object graph shared by the serve and chat
// commands.
type components struct {
	cfg          config.Config
	registry     *registry.Registry
	orchestrator *chat.Orchestrator
	ingestor     *ingest.Ingestor
}

// build loads configuration and wires the retrieval, gateway and
// orchestration components.
func build(path string) (*components, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	qdrant, err := retriever.NewQdrantClient(cfg.Retriever.QdrantURL, nil)
	if err != nil {
		return nil, fmt.Errorf("initialise qdrant client: %w", err)
	}

	embedBaseURL := ""
	if pc, ok := cfg.Providers[cfg.Retriever.Embedding.Provider]; ok {
		embedBaseURL = pc.BaseURL
	}
	embedder, err := retriever.NewOpenAIEmbedder(cfg.Retriever.Embedding.Provider, embedBaseURL, cfg.Retriever.Embedding.Model)
	if err != nil {
		return nil, fmt.Errorf("initialise embedder: %w", err)
	}

	ret := retriever.New(
		qdrant,
		embedder,
		cfg.Retriever.Collection,
		cfg.Retriever.TopK,
		time.Duration(cfg.Retriever.TimeoutSeconds)*time.Second,
	)

	reg := registry.NewFromFile(path)
	orchestrator := chat.New(composer.New(ret), reg, gateway.New(cfg.Providers))
	ingestor := ingest.New(qdrant, embedder, cfg.Retriever.Collection)

	return &components{
		cfg:          cfg,
		registry:     reg,
		orchestrator: orchestrator,
		ingestor:     ingestor,
	}, nil
}
