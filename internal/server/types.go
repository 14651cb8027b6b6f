package server

import "time"

type chatRequest struct {
	DocumentID string `json:"documentId"`
	Message    string `json:"message"`
}

type uploadResponse struct {
	Success    bool        `json:"success"`
	DocumentID string      `json:"documentId"`
	Filename   string      `json:"filename"`
	Message    string      `json:"message"`
	Stats      uploadStats `json:"stats"`
}

type uploadStats struct {
	OriginalSize  int64 `json:"originalSize"`
	ChunkCount    int   `json:"chunkCount"`
	VectorCount   int   `json:"vectorCount"`
	ContentLength int   `json:"contentLength"`
}

type historyMessage struct {
	ID        string        `json:"id"`
	Role      string        `json:"role"`
	Parts     []historyPart `json:"parts"`
	CreatedAt time.Time     `json:"createdAt"`
}

type historyPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
