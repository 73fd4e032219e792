package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "ragchat-router/0.1"

	defaultHTTPTimeout     = 30 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// QdrantClient talks to a Qdrant instance over its REST API.
type QdrantClient struct {
	baseURL string
	client  *http.Client
}

// NewQdrantClient creates a Qdrant REST client. A nil http client gets a
// pooled default.
func NewQdrantClient(baseURL string, client *http.Client) (*QdrantClient, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("qdrant base url must not be empty")
	}
	if client == nil {
		client = newPooledHTTPClient(defaultHTTPTimeout)
	}

	return &QdrantClient{
		baseURL: baseURL,
		client:  client,
	}, nil
}

// Point is a single vector entry with its text payload.
type Point struct {
	ID      string            `json:"id"`
	Vector  []float32         `json:"vector"`
	Payload map[string]string `json:"payload"`
}

// ScoredPoint is a search hit with its similarity score.
type ScoredPoint struct {
	ID      any               `json:"id"`
	Score   float64           `json:"score"`
	Payload map[string]string `json:"payload"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []ScoredPoint `json:"result"`
	Status any           `json:"status"`
}

// Search returns the limit most similar points in the collection.
func (c *QdrantClient) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, collection)
	payload := searchRequest{
		Vector:      vector,
		Limit:       limit,
		WithPayload: true,
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, url, payload, &resp); err != nil {
		return nil, fmt.Errorf("qdrant search in %q: %w", collection, err)
	}
	return resp.Result, nil
}

type collectionInfoResponse struct {
	Status string `json:"status"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// EnsureCollection creates the collection with the given vector dimension
// if it does not already exist.
func (c *QdrantClient) EnsureCollection(ctx context.Context, collection string, dim int) error {
	infoURL := fmt.Sprintf("%s/collections/%s", c.baseURL, collection)
	if err := c.do(ctx, http.MethodGet, infoURL, nil, &collectionInfoResponse{}); err == nil {
		return nil
	}

	payload := createCollectionRequest{
		Vectors: vectorParams{Size: dim, Distance: "Cosine"},
	}
	if err := c.do(ctx, http.MethodPut, infoURL, payload, nil); err != nil {
		return fmt.Errorf("qdrant create collection %q: %w", collection, err)
	}
	return nil
}

type upsertRequest struct {
	Points []Point `json:"points"`
}

// UpsertPoints writes points into the collection, replacing entries with
// the same IDs.
func (c *QdrantClient) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, collection)
	if err := c.do(ctx, http.MethodPut, url, upsertRequest{Points: points}, nil); err != nil {
		return fmt.Errorf("qdrant upsert into %q: %w", collection, err)
	}
	return nil
}

func (c *QdrantClient) do(ctx context.Context, method, url string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseAPIError(resp)
	}

	if target == nil {
		return nil
	}

	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode qdrant response: %w", err)
	}
	return nil
}

type apiErrorResponse struct {
	Status struct {
		Error string `json:"error"`
	} `json:"status"`
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("upstream error status %d and failed to read body: %w", resp.StatusCode, err)
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Status.Error != "" {
		return fmt.Errorf("qdrant error (status %d): %s", resp.StatusCode, apiErr.Status.Error)
	}

	return fmt.Errorf("upstream error status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func newPooledHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
