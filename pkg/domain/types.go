package domain

import "time"

// DocumentStatus tracks the ingestion lifecycle of an uploaded document.
type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusError      DocumentStatus = "error"
)

// Document describes an uploaded file and its pipeline state.
type Document struct {
	ID            string         `json:"documentId"`
	Title         string         `json:"title"`
	Filename      string         `json:"filename"`
	FileType      string         `json:"fileType"`
	FileSize      int64          `json:"fileSize"`
	StorageKey    string         `json:"-"`
	Status        DocumentStatus `json:"status"`
	ErrorMessage  string         `json:"errorMessage,omitempty"`
	ChunkCount    int            `json:"chunkCount,omitempty"`
	VectorCount   int            `json:"vectorCount,omitempty"`
	ContentLength int            `json:"contentLength,omitempty"`
	UploadedAt    time.Time      `json:"uploadedAt"`
	ProcessedAt   *time.Time     `json:"processedAt,omitempty"`
}

// Chunk is an in-memory fragment of extracted document text.
// Chunks are never persisted on their own; only their embedding and
// metadata reach the vector store.
type Chunk struct {
	Index   int
	Content string
}

// Message is a single chat turn in a document conversation.
// The conversation is keyed by document ID; history is append-only.
type Message struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Context    string    `json:"context,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Source identifies a retrieved chunk that grounded an answer.
type Source struct {
	DocumentID    string  `json:"documentId"`
	DocumentTitle string  `json:"documentTitle"`
	ChunkID       string  `json:"chunkId"`
	Content       string  `json:"content"`
	Similarity    float32 `json:"similarity"`
}
