package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VectorModel is the GORM model backing the pgvector store.
type VectorModel struct {
	ID         string          `gorm:"primaryKey"`
	DocumentID string          `gorm:"not null;index"`
	ChunkIndex int             `gorm:"not null"`
	Content    string          `gorm:"type:text;not null"`
	Metadata   datatypes.JSON  `gorm:"type:jsonb"`
	Embedding  pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt  time.Time       `gorm:"not null"`
}

// PgVectorStore implements Store on Postgres with the pgvector extension.
// It shares the metadata store's connection pool.
type PgVectorStore struct {
	db *gorm.DB
}

// NewPgVectorStore migrates the vectors table and fixes the embedding column
// to the configured dimension.
func NewPgVectorStore(db *gorm.DB, dim int) (*PgVectorStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	if dim <= 0 {
		dim = 768
	}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("create pgvector extension: %w", err)
	}
	if err := db.AutoMigrate(&VectorModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate vectors: %w", err)
	}
	if err := db.Exec(fmt.Sprintf("ALTER TABLE vector_models ALTER COLUMN embedding TYPE vector(%d)", dim)).Error; err != nil {
		return nil, fmt.Errorf("alter embedding type: %w", err)
	}
	return &PgVectorStore{db: db}, nil
}

// Upsert writes records, overwriting by id.
func (s *PgVectorStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]VectorModel, 0, len(records))
	now := time.Now().UTC()
	for _, rec := range records {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		models = append(models, VectorModel{
			ID:         rec.ID,
			DocumentID: rec.Metadata.DocumentID,
			ChunkIndex: rec.Metadata.ChunkIndex,
			Content:    rec.Metadata.Content,
			Metadata:   meta,
			Embedding:  pgvector.NewVector(rec.Values),
			CreatedAt:  now,
		})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"document_id", "chunk_index", "content", "metadata", "embedding"}),
	}).Create(&models).Error
}

// Query returns the topK nearest records by cosine distance.
func (s *PgVectorStore) Query(ctx context.Context, embedding []float32, topK int, documentID string) ([]Match, error) {
	if topK <= 0 {
		topK = 4
	}
	type row struct {
		VectorModel
		Distance float64
	}
	tx := s.db.WithContext(ctx).
		Model(&VectorModel{}).
		Select("*, embedding <=> ? AS distance", pgvector.NewVector(embedding)).
		Order("distance ASC").
		Limit(topK)
	if documentID != "" {
		tx = tx.Where("document_id = ?", documentID)
	}
	var rows []row
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(rows))
	for _, r := range rows {
		var meta Metadata
		if err := json.Unmarshal(r.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", r.ID, err)
		}
		matches = append(matches, Match{
			ID:       r.ID,
			Score:    float32(1 - r.Distance),
			Metadata: meta,
		})
	}
	return matches, nil
}

// DeleteByDocument removes every record belonging to the document.
func (s *PgVectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return s.db.WithContext(ctx).Delete(&VectorModel{}, "document_id = ?", documentID).Error
}

var _ Store = (*PgVectorStore)(nil)
