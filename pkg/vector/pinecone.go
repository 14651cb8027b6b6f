package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultIndexName is used when no index name is configured.
const DefaultIndexName = "rag-pre"

// PineconeStore calls the Pinecone data-plane HTTP API.
type PineconeStore struct {
	host       string
	apiKey     string
	namespace  string
	httpClient *http.Client
}

// NewPineconeStore builds a client against the given index host.
// indexName selects the namespace records are written to; it falls back to
// DefaultIndexName when empty.
func NewPineconeStore(host, apiKey, indexName string) (*PineconeStore, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return nil, fmt.Errorf("pinecone host required")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone api key required")
	}
	indexName = strings.TrimSpace(indexName)
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return &PineconeStore{
		host:       host,
		apiKey:     apiKey,
		namespace:  indexName,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Upsert writes records, overwriting by id.
func (p *PineconeStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	req := pineconeUpsertRequest{
		Vectors:   records,
		Namespace: p.namespace,
	}
	return p.doJSON(ctx, "/vectors/upsert", req, nil)
}

// Query returns the topK most similar records.
func (p *PineconeStore) Query(ctx context.Context, embedding []float32, topK int, documentID string) ([]Match, error) {
	if topK <= 0 {
		topK = 4
	}
	req := pineconeQueryRequest{
		Vector:          embedding,
		TopK:            topK,
		Namespace:       p.namespace,
		IncludeMetadata: true,
	}
	if documentID != "" {
		req.Filter = documentFilter(documentID)
	}
	var resp pineconeQueryResponse
	if err := p.doJSON(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// DeleteByDocument removes every record whose metadata documentId matches.
func (p *PineconeStore) DeleteByDocument(ctx context.Context, documentID string) error {
	req := pineconeDeleteRequest{
		Filter:    documentFilter(documentID),
		Namespace: p.namespace,
	}
	return p.doJSON(ctx, "/vectors/delete", req, nil)
}

func (p *PineconeStore) doJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp pineconeErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Message != "" {
			return fmt.Errorf("pinecone api error: %s", errResp.Message)
		}
		return fmt.Errorf("pinecone api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{
		"documentId": map[string]any{"$eq": documentID},
	}
}

// Pinecone request/response types.

type pineconeUpsertRequest struct {
	Vectors   []Record `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type pineconeQueryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	Namespace       string         `json:"namespace,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type pineconeQueryResponse struct {
	Matches []Match `json:"matches"`
}

type pineconeDeleteRequest struct {
	Filter    map[string]any `json:"filter"`
	Namespace string         `json:"namespace,omitempty"`
}

type pineconeErrorResponse struct {
	Message string `json:"message"`
}

var _ Store = (*PineconeStore)(nil)
