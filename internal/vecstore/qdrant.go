// Package vecstore is a typed client for the Qdrant vector database. It
// owns the chunk ID and payload schema shared by ingestion and querying.
package vecstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/corpusrag/internal/retry"
)

// Chunk is the unit of storage and retrieval: a bounded text span with a
// deterministic ID and the metadata used for filtering and citation.
type Chunk struct {
	ID       string
	Text     string
	Source   string // full source path
	DocName  string // base name, filter key
	Modality string
	Unit     int
	Locator  string
}

// ScoredChunk is a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk
	Score float64
}

// Filter restricts a search; zero-value fields are not applied. Conditions
// are conjunctive.
type Filter struct {
	DocName  string
	Modality string
}

// Config for the Qdrant client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Client is a minimal REST client to Qdrant assuming cosine distance.
type Client struct {
	url        string
	apiKey     string
	collection string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection if missing. Qdrant answers 200 for
// an existing collection with the same schema.
func (c *Client) EnsureCollection(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid embedding dimensions: %d", dimensions)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", c.collection), body, nil)
}

// Reset drops and recreates the collection.
func (c *Client) Reset(ctx context.Context, dimensions int) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/collections/%s", c.collection), nil, nil); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return c.EnsureCollection(ctx, dimensions)
}

// Upsert writes chunks and their vectors. Point IDs are deterministic UUIDs
// derived from the chunk ID, so re-upserting the same chunk overwrites it.
func (c *Client) Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		points[i] = map[string]any{
			"id":     pointID(ch.ID),
			"vector": vectors[i],
			"payload": map[string]any{
				"chunk_id": ch.ID,
				"text":     ch.Text,
				"source":   ch.Source,
				"doc_name": ch.DocName,
				"type":     ch.Modality,
				"unit":     ch.Unit,
				"locator":  ch.Locator,
			},
		}
	}
	body := map[string]any{"points": points}
	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// DeleteByID removes points by their chunk IDs.
func (c *Client) DeleteByID(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	ids := make([]string, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = pointID(id)
	}
	body := map[string]any{"points": ids}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// Search returns up to limit chunks ranked by descending similarity, ties
// broken by ascending chunk ID for determinism.
func (c *Client) Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		req["filter"] = f
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	results := make([]ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, ScoredChunk{Chunk: chunkFromPayload(r.Payload), Score: r.Score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

// Ping verifies the service is reachable before a run commits to it.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/collections", nil, nil)
}

func buildFilter(f Filter) map[string]any {
	var must []map[string]any
	if f.DocName != "" {
		must = append(must, map[string]any{
			"key":   "doc_name",
			"match": map[string]any{"value": f.DocName},
		})
	}
	if f.Modality != "" {
		must = append(must, map[string]any{
			"key":   "type",
			"match": map[string]any{"value": f.Modality},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func chunkFromPayload(payload map[string]any) Chunk {
	ch := Chunk{}
	if v, ok := payload["chunk_id"].(string); ok {
		ch.ID = v
	}
	if v, ok := payload["text"].(string); ok {
		ch.Text = v
	}
	if v, ok := payload["source"].(string); ok {
		ch.Source = v
	}
	if v, ok := payload["doc_name"].(string); ok {
		ch.DocName = v
	}
	if v, ok := payload["type"].(string); ok {
		ch.Modality = v
	}
	if v, ok := payload["unit"].(float64); ok {
		ch.Unit = int(v)
	}
	if v, ok := payload["locator"].(string); ok {
		ch.Locator = v
	}
	return ch
}

// pointID maps a chunk ID to the UUID form Qdrant requires for point IDs.
// The mapping is deterministic, so the same chunk always lands on the same
// point.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &retry.RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
