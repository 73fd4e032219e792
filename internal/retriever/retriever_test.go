package retriever

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vector []float32
	calls  int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	return s.vector, nil
}

func TestRetrieveReturnsFragments(t *testing.T) {
	var gotSearch searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/documents/points/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotSearch))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"result": [
				{"id": 1, "score": 0.91, "payload": {"text": "first chunk"}},
				{"id": 2, "score": 0.85, "payload": {"text": "second chunk"}},
				{"id": 3, "score": 0.5, "payload": {"other": "no text here"}}
			],
			"status": "ok"
		}`))
	}))
	defer srv.Close()

	qdrant, err := NewQdrantClient(srv.URL, nil)
	require.NoError(t, err)

	embedder := &stubEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	r := New(qdrant, embedder, "documents", 3, 5*time.Second)

	fragments, err := r.Retrieve(context.Background(), "what is in the corpus?")
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, gotSearch.Vector)
	assert.Equal(t, 3, gotSearch.Limit)
	assert.True(t, gotSearch.WithPayload)

	// Points without a text payload are skipped.
	require.Len(t, fragments, 2)
	assert.Equal(t, "first chunk", fragments[0].Text)
	assert.Equal(t, "second chunk", fragments[1].Text)
}

func TestRetrieveSurfacesQdrantError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status": {"error": "collection not found"}}`))
	}))
	defer srv.Close()

	qdrant, err := NewQdrantClient(srv.URL, nil)
	require.NoError(t, err)

	r := New(qdrant, &stubEmbedder{vector: []float32{1}}, "documents", 3, 5*time.Second)

	_, err = r.Retrieve(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection not found")
}

func TestRetrieveHonoursTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"result": [], "status": "ok"}`))
	}))
	defer srv.Close()

	qdrant, err := NewQdrantClient(srv.URL, nil)
	require.NoError(t, err)

	r := New(qdrant, &stubEmbedder{vector: []float32{1}}, "documents", 3, 50*time.Millisecond)

	_, err = r.Retrieve(context.Background(), "query")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQdrantClientRequiresBaseURL(t *testing.T) {
	_, err := NewQdrantClient("", nil)
	assert.Error(t, err)
}

func TestEnsureCollectionSkipsExisting(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			created = true
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	qdrant, err := NewQdrantClient(srv.URL, nil)
	require.NoError(t, err)

	require.NoError(t, qdrant.EnsureCollection(context.Background(), "documents", 768))
	assert.False(t, created, "existing collection must not be recreated")
}

func TestEnsureCollectionCreatesMissing(t *testing.T) {
	var createBody createCollectionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status": {"error": "not found"}}`))
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createBody))
			w.Write([]byte(`{"result": true, "status": "ok"}`))
		}
	}))
	defer srv.Close()

	qdrant, err := NewQdrantClient(srv.URL, nil)
	require.NoError(t, err)

	require.NoError(t, qdrant.EnsureCollection(context.Background(), "documents", 768))
	assert.Equal(t, 768, createBody.Vectors.Size)
	assert.Equal(t, "Cosine", createBody.Vectors.Distance)
}

func TestUpsertPointsSendsPayload(t *testing.T) {
	var got upsertRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/documents/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": {"status": "acknowledged"}, "status": "ok"}`))
	}))
	defer srv.Close()

	qdrant, err := NewQdrantClient(srv.URL, nil)
	require.NoError(t, err)

	points := []Point{
		{ID: "a", Vector: []float32{1, 2}, Payload: map[string]string{"text": "chunk"}},
	}
	require.NoError(t, qdrant.UpsertPoints(context.Background(), "documents", points))
	require.Len(t, got.Points, 1)
	assert.Equal(t, "chunk", got.Points[0].Payload["text"])
}
