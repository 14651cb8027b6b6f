// Package vector persists chunk embeddings in an external vector database.
package vector

import "context"

// Metadata is the bag stored alongside each embedding.
type Metadata struct {
	DocumentID string `json:"documentId"`
	ChunkIndex int    `json:"chunkIndex"`
	Content    string `json:"content"`
	Title      string `json:"title"`
	Filename   string `json:"filename"`
	FileType   string `json:"fileType"`
	Timestamp  string `json:"timestamp"`
}

// Record is one persisted (id, embedding, metadata) triple.
type Record struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata Metadata  `json:"metadata"`
}

// Match is a query hit with its similarity score.
type Match struct {
	ID       string   `json:"id"`
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Store abstracts the vector database.
type Store interface {
	// Upsert writes records, overwriting by id.
	Upsert(ctx context.Context, records []Record) error
	// Query returns the topK most similar records, restricted to documentID
	// when it is non-empty.
	Query(ctx context.Context, embedding []float32, topK int, documentID string) ([]Match, error)
	// DeleteByDocument removes every record whose metadata documentId matches.
	DeleteByDocument(ctx context.Context, documentID string) error
}
