package vector

import (
	"context"
	"fmt"
	"time"

	"docchat/pkg/domain"
)

// upsertBatchSize bounds each write to respect service rate and payload limits.
const upsertBatchSize = 100

// DocumentMeta carries document fields copied into every record.
type DocumentMeta struct {
	Title    string
	Filename string
	FileType string
}

// StoreChunks writes one record per chunk, id {documentId}-chunk-{index},
// in fixed-size batches executed sequentially. A batch failure aborts the
// remaining batches; already-written batches stay written. Re-running for the
// same document overwrites by deterministic id, so retries are safe.
// Returns the number of vectors written.
func StoreChunks(ctx context.Context, store Store, documentID string, chunks []domain.Chunk, embeddings [][]float32, meta DocumentMeta) (int, error) {
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(chunks))
	}
	now := time.Now().UTC().Format(time.RFC3339)
	records := make([]Record, 0, len(chunks))
	for i, chunk := range chunks {
		records = append(records, Record{
			ID:     ChunkID(documentID, chunk.Index),
			Values: embeddings[i],
			Metadata: Metadata{
				DocumentID: documentID,
				ChunkIndex: chunk.Index,
				Content:    chunk.Content,
				Title:      meta.Title,
				Filename:   meta.Filename,
				FileType:   meta.FileType,
				Timestamp:  now,
			},
		})
	}
	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := store.Upsert(ctx, records[start:end]); err != nil {
			return 0, fmt.Errorf("upsert batch at %d: %w", start, err)
		}
	}
	return len(records), nil
}

// ChunkID builds the deterministic record id for a document chunk.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-chunk-%d", documentID, index)
}
