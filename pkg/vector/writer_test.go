package vector

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"docchat/pkg/domain"
)

type captureStore struct {
	batches [][]Record
	failAt  int // fail on the Nth Upsert call (1-based), 0 = never
	calls   int
}

func (c *captureStore) Upsert(_ context.Context, records []Record) error {
	c.calls++
	if c.failAt > 0 && c.calls == c.failAt {
		return errors.New("upsert failed")
	}
	batch := make([]Record, len(records))
	copy(batch, records)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureStore) Query(context.Context, []float32, int, string) ([]Match, error) {
	return nil, nil
}

func (c *captureStore) DeleteByDocument(context.Context, string) error { return nil }

func makeChunks(n int) ([]domain.Chunk, [][]float32) {
	chunks := make([]domain.Chunk, n)
	embeddings := make([][]float32, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{Index: i, Content: fmt.Sprintf("chunk %d", i)}
		embeddings[i] = []float32{float32(i), 0.5}
	}
	return chunks, embeddings
}

func TestStoreChunksBuildsDeterministicIDs(t *testing.T) {
	store := &captureStore{}
	chunks, embeddings := makeChunks(3)
	meta := DocumentMeta{Title: "My Essay", Filename: "essay.pdf", FileType: "pdf"}

	n, err := StoreChunks(context.Background(), store, "doc123", chunks, embeddings, meta)
	if err != nil {
		t.Fatalf("StoreChunks: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
	if len(store.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(store.batches))
	}
	for i, rec := range store.batches[0] {
		wantID := fmt.Sprintf("doc123-chunk-%d", i)
		if rec.ID != wantID {
			t.Fatalf("record %d id = %q, want %q", i, rec.ID, wantID)
		}
		if rec.Metadata.ChunkIndex != i {
			t.Fatalf("record %d chunkIndex = %d, want %d", i, rec.Metadata.ChunkIndex, i)
		}
		if rec.Metadata.DocumentID != "doc123" || rec.Metadata.Title != "My Essay" ||
			rec.Metadata.Filename != "essay.pdf" || rec.Metadata.FileType != "pdf" {
			t.Fatalf("record %d metadata incomplete: %+v", i, rec.Metadata)
		}
		if rec.Metadata.Timestamp == "" {
			t.Fatalf("record %d missing timestamp", i)
		}
	}
}

func TestStoreChunksBatchesOfOneHundred(t *testing.T) {
	store := &captureStore{}
	chunks, embeddings := makeChunks(250)

	n, err := StoreChunks(context.Background(), store, "doc-1", chunks, embeddings, DocumentMeta{})
	if err != nil {
		t.Fatalf("StoreChunks: %v", err)
	}
	if n != 250 {
		t.Fatalf("count = %d, want 250", n)
	}
	sizes := make([]int, 0, len(store.batches))
	for _, b := range store.batches {
		sizes = append(sizes, len(b))
	}
	if len(sizes) != 3 || sizes[0] != 100 || sizes[1] != 100 || sizes[2] != 50 {
		t.Fatalf("batch sizes = %v, want [100 100 50]", sizes)
	}
}

func TestStoreChunksAbortsAfterBatchFailure(t *testing.T) {
	store := &captureStore{failAt: 2}
	chunks, embeddings := makeChunks(250)

	_, err := StoreChunks(context.Background(), store, "doc-1", chunks, embeddings, DocumentMeta{})
	if err == nil {
		t.Fatal("expected error")
	}
	// First batch was written before the failure; no further batches follow.
	if store.calls != 2 {
		t.Fatalf("upsert calls = %d, want 2", store.calls)
	}
	if len(store.batches) != 1 {
		t.Fatalf("stored batches = %d, want 1", len(store.batches))
	}
}

func TestStoreChunksRejectsCountMismatch(t *testing.T) {
	store := &captureStore{}
	chunks, embeddings := makeChunks(3)
	if _, err := StoreChunks(context.Background(), store, "doc-1", chunks, embeddings[:2], DocumentMeta{}); err == nil {
		t.Fatal("expected mismatch error")
	}
	if store.calls != 0 {
		t.Fatalf("no upsert should happen on mismatch, got %d calls", store.calls)
	}
}
