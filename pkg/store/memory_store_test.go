package store

import (
	"testing"
	"time"

	"docchat/pkg/domain"
)

func newDoc(id string) domain.Document {
	return domain.Document{
		ID:         id,
		Title:      "sample",
		Filename:   "sample.txt",
		FileType:   "txt",
		FileSize:   42,
		Status:     domain.StatusProcessing,
		UploadedAt: time.Now().UTC(),
	}
}

func TestCreateDocumentRejectsDuplicateID(t *testing.T) {
	s := NewMemoryStore()
	if err := s.CreateDocument(newDoc("doc-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateDocument(newDoc("doc-1")); err != ErrDuplicateDocument {
		t.Fatalf("expected ErrDuplicateDocument, got %v", err)
	}
}

func TestGetDocumentAbsenceIsNotError(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.GetDocument("missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected not found")
	}
}

func TestUpdateDocumentIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	if err := s.CreateDocument(newDoc("doc-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	status := domain.StatusCompleted
	chunks := 3
	vectors := 3
	now := time.Now().UTC()
	update := DocumentUpdate{
		Status:      &status,
		ChunkCount:  &chunks,
		VectorCount: &vectors,
		ProcessedAt: &now,
	}
	if err := s.UpdateDocument("doc-1", update); err != nil {
		t.Fatalf("first update: %v", err)
	}
	first, _, _ := s.GetDocument("doc-1")
	if err := s.UpdateDocument("doc-1", update); err != nil {
		t.Fatalf("second update: %v", err)
	}
	second, _, _ := s.GetDocument("doc-1")
	if first.Status != second.Status || first.ChunkCount != second.ChunkCount ||
		first.VectorCount != second.VectorCount || !first.ProcessedAt.Equal(*second.ProcessedAt) {
		t.Fatalf("update not idempotent: first=%+v second=%+v", first, second)
	}
	if second.Status != domain.StatusCompleted || second.VectorCount != 3 {
		t.Fatalf("unexpected final state: %+v", second)
	}
}

func TestUpdateDocumentMergesPartialFields(t *testing.T) {
	s := NewMemoryStore()
	if err := s.CreateDocument(newDoc("doc-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	status := domain.StatusError
	msg := "no extractable text content"
	if err := s.UpdateDocument("doc-1", DocumentUpdate{Status: &status, ErrorMessage: &msg}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, _, _ := s.GetDocument("doc-1")
	if doc.Status != domain.StatusError || doc.ErrorMessage != msg {
		t.Fatalf("status update not applied: %+v", doc)
	}
	if doc.Title != "sample" || doc.FileSize != 42 {
		t.Fatalf("unrelated fields were clobbered: %+v", doc)
	}
}

func TestListDocumentsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	for _, id := range []string{"doc-a", "doc-b", "doc-c"} {
		if err := s.CreateDocument(newDoc(id)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	base := time.Now().UTC()
	s.Touch("doc-a", base.Add(-2*time.Hour))
	s.Touch("doc-b", base.Add(-1*time.Hour))
	s.Touch("doc-c", base)

	docs, err := s.ListDocuments()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("len = %d, want 3", len(docs))
	}
	if docs[0].ID != "doc-c" || docs[2].ID != "doc-a" {
		t.Fatalf("unexpected order: %s, %s, %s", docs[0].ID, docs[1].ID, docs[2].ID)
	}
}

func TestMessagesChronologicalOrder(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()
	for i, role := range []string{"user", "assistant", "user"} {
		if err := s.AppendMessage(domain.Message{
			ID:         string(rune('a' + i)),
			DocumentID: "doc-1",
			Role:       role,
			Content:    "msg",
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	msgs, err := s.ListMessages("doc-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("messages out of order at %d", i)
		}
	}
}

func TestDeleteDocumentRemovesMessages(t *testing.T) {
	s := NewMemoryStore()
	if err := s.CreateDocument(newDoc("doc-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = s.AppendMessage(domain.Message{ID: "m1", DocumentID: "doc-1", Role: "user", Content: "hi", CreatedAt: time.Now()})
	if err := s.DeleteDocument("doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetDocument("doc-1"); ok {
		t.Fatal("document should be gone")
	}
	msgs, _ := s.ListMessages("doc-1", 0)
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}
