package store

import (
	"errors"
	"time"

	"docchat/pkg/domain"
)

// ErrDuplicateDocument is returned when creating a document whose ID already exists.
var ErrDuplicateDocument = errors.New("document id already exists")

// DocumentUpdate merges the set fields into an existing document record.
// Nil fields are left untouched. Applying the same update twice yields the
// same final state.
type DocumentUpdate struct {
	Status        *domain.DocumentStatus
	ErrorMessage  *string
	ProcessedAt   *time.Time
	ChunkCount    *int
	VectorCount   *int
	ContentLength *int
}

// Store defines persistence operations for documents and chat messages.
type Store interface {
	// documents
	CreateDocument(doc domain.Document) error
	GetDocument(id string) (domain.Document, bool, error)
	ListDocuments() ([]domain.Document, error)
	UpdateDocument(id string, update DocumentUpdate) error
	DeleteDocument(id string) error

	// chat
	AppendMessage(msg domain.Message) error
	ListMessages(documentID string, limit int) ([]domain.Message, error)
}
