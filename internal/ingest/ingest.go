// Package ingest turns PDF documents into embedded chunks stored in the
// vector collection the retriever searches.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"ragchat-router/internal/retriever"
)

// Ingestor splits, embeds and upserts documents.
type Ingestor struct {
	qdrant     *retriever.QdrantClient
	embedder   retriever.Embedder
	collection string
}

// New constructs an ingestor writing into the given collection.
func New(qdrant *retriever.QdrantClient, embedder retriever.Embedder, collection string) *Ingestor {
	return &Ingestor{
		qdrant:     qdrant,
		embedder:   embedder,
		collection: collection,
	}
}

// ExtractPDFText reads all plain text from the PDF at path.
func ExtractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %q: %w", path, err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text from %q: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

// IngestPDF extracts the document text and stores it. It returns the
// number of chunks stored.
func (i *Ingestor) IngestPDF(ctx context.Context, path string) (int, error) {
	text, err := ExtractPDFText(path)
	if err != nil {
		return 0, err
	}
	return i.IngestText(ctx, text, path)
}

// IngestText splits text into overlapping chunks, embeds each chunk and
// upserts the vectors, tagging every point with the source it came from.
func (i *Ingestor) IngestText(ctx context.Context, text, source string) (int, error) {
	chunks := SplitText(text, DefaultChunkSize, DefaultChunkOverlap)
	if len(chunks) == 0 {
		return 0, errors.New("no text content could be extracted from the document")
	}

	points := make([]retriever.Point, 0, len(chunks))
	for idx, chunk := range chunks {
		vector, err := i.embedder.Embed(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d/%d: %w", idx+1, len(chunks), err)
		}
		points = append(points, retriever.Point{
			ID:     uuid.NewString(),
			Vector: vector,
			Payload: map[string]string{
				"text":   chunk,
				"source": source,
			},
		})
	}

	if err := i.qdrant.EnsureCollection(ctx, i.collection, len(points[0].Vector)); err != nil {
		return 0, err
	}
	if err := i.qdrant.UpsertPoints(ctx, i.collection, points); err != nil {
		return 0, err
	}

	slog.Info("document ingested",
		"source", source,
		"collection", i.collection,
		"chunks", len(points),
	)
	return len(points), nil
}
