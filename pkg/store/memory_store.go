package store

import (
	"sort"
	"sync"
	"time"

	"docchat/pkg/domain"
)

// MemoryStore keeps metadata in-process. Used by tests and as a no-database
// development mode.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]domain.Document
	messages map[string][]domain.Message
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]domain.Document),
		messages: make(map[string][]domain.Message),
	}
}

// CreateDocument inserts a new document record. Duplicate IDs fail.
func (m *MemoryStore) CreateDocument(doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; exists {
		return ErrDuplicateDocument
	}
	m.docs[doc.ID] = doc
	return nil
}

// GetDocument retrieves a document by ID.
func (m *MemoryStore) GetDocument(id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok, nil
}

// ListDocuments returns all documents, newest upload first.
func (m *MemoryStore) ListDocuments() ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		res = append(res, doc)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].UploadedAt.After(res[j].UploadedAt)
	})
	return res, nil
}

// UpdateDocument merges the set fields into an existing record.
// Missing documents are a no-op, matching the SQL UPDATE semantics.
func (m *MemoryStore) UpdateDocument(id string, update DocumentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil
	}
	if update.Status != nil {
		doc.Status = *update.Status
	}
	if update.ErrorMessage != nil {
		doc.ErrorMessage = *update.ErrorMessage
	}
	if update.ProcessedAt != nil {
		at := update.ProcessedAt.UTC()
		doc.ProcessedAt = &at
	}
	if update.ChunkCount != nil {
		doc.ChunkCount = *update.ChunkCount
	}
	if update.VectorCount != nil {
		doc.VectorCount = *update.VectorCount
	}
	if update.ContentLength != nil {
		doc.ContentLength = *update.ContentLength
	}
	m.docs[id] = doc
	return nil
}

// DeleteDocument removes a document and its chat history.
func (m *MemoryStore) DeleteDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	delete(m.messages, id)
	return nil
}

// AppendMessage records a chat message.
func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.DocumentID] = append(m.messages[msg.DocumentID], msg)
	return nil
}

// ListMessages returns messages for a document in chronological order.
func (m *MemoryStore) ListMessages(documentID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[documentID]
	res := make([]domain.Message, len(msgs))
	copy(res, msgs)
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

var _ Store = (*MemoryStore)(nil)

// Touch is a test helper that backdates a document's upload time.
func (m *MemoryStore) Touch(id string, uploadedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[id]; ok {
		doc.UploadedAt = uploadedAt
		m.docs[id] = doc
	}
}
