// Package retriever finds the text fragments most relevant to a query in a
// previously indexed vector collection.
package retriever

import (
	"context"
	"fmt"
	"time"

	"ragchat-router/internal/models"
)

// payloadTextKey is the payload field holding the original chunk text.
const payloadTextKey = "text"

// QdrantRetriever retrieves top-K fragments from a Qdrant collection.
type QdrantRetriever struct {
	qdrant     *QdrantClient
	embedder   Embedder
	collection string
	topK       int
	timeout    time.Duration
}

// New constructs a retriever over the given collection. timeout bounds the
// whole retrieval (embedding plus search) so a stuck vector store cannot
// block a chat request indefinitely.
func New(qdrant *QdrantClient, embedder Embedder, collection string, topK int, timeout time.Duration) *QdrantRetriever {
	return &QdrantRetriever{
		qdrant:     qdrant,
		embedder:   embedder,
		collection: collection,
		topK:       topK,
		timeout:    timeout,
	}
}

// Retrieve embeds the query and returns up to topK matching fragments,
// most similar first.
func (r *QdrantRetriever) Retrieve(ctx context.Context, query string) ([]models.Fragment, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	points, err := r.qdrant.Search(ctx, r.collection, vector, r.topK)
	if err != nil {
		return nil, err
	}

	fragments := make([]models.Fragment, 0, len(points))
	for _, point := range points {
		text, ok := point.Payload[payloadTextKey]
		if !ok || text == "" {
			continue
		}
		fragments = append(fragments, models.Fragment{Text: text})
	}
	return fragments, nil
}
