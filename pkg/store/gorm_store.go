package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"docchat/pkg/domain"
)

const migrateLockID int64 = 52014809

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations. The returned store owns
// the connection handle; callers construct it once at startup and close it on
// shutdown rather than relying on lazy first-use initialization.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&DocumentModel{}, &MessageModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// DB exposes the underlying handle so other collaborators (e.g. the pgvector
// store) can share the single connection pool.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateDocument inserts a new document record. Duplicate IDs fail.
func (s *GormStore) CreateDocument(doc domain.Document) error {
	model := documentToModel(doc)
	if err := s.db.Create(&model).Error; err != nil {
		if err == gorm.ErrDuplicatedKey {
			return ErrDuplicateDocument
		}
		return err
	}
	return nil
}

// GetDocument retrieves a document by ID. Absence is not an error.
func (s *GormStore) GetDocument(id string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// ListDocuments returns all documents, newest upload first.
func (s *GormStore) ListDocuments() ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Order("uploaded_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// UpdateDocument merges the set fields into the existing record.
func (s *GormStore) UpdateDocument(id string, update DocumentUpdate) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if update.Status != nil {
		updates["status"] = string(*update.Status)
	}
	if update.ErrorMessage != nil {
		updates["error_message"] = *update.ErrorMessage
	}
	if update.ProcessedAt != nil {
		updates["processed_at"] = update.ProcessedAt.UTC()
	}
	if update.ChunkCount != nil {
		updates["chunk_count"] = *update.ChunkCount
	}
	if update.VectorCount != nil {
		updates["vector_count"] = *update.VectorCount
	}
	if update.ContentLength != nil {
		updates["content_length"] = *update.ContentLength
	}
	return s.db.Model(&DocumentModel{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteDocument removes a document and its chat history.
func (s *GormStore) DeleteDocument(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&MessageModel{}, "document_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&DocumentModel{}, "id = ?", id).Error
	})
}

// AppendMessage records a chat message.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := messageToModel(msg)
	return s.db.Create(&model).Error
}

// ListMessages returns messages for a document in chronological order.
func (s *GormStore) ListMessages(documentID string, limit int) ([]domain.Message, error) {
	tx := s.db.Where("document_id = ?", documentID).Order("created_at ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var models []MessageModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		ID:            d.ID,
		Title:         d.Title,
		Filename:      d.Filename,
		FileType:      d.FileType,
		FileSize:      d.FileSize,
		StorageKey:    d.StorageKey,
		Status:        string(d.Status),
		ErrorMessage:  d.ErrorMessage,
		ChunkCount:    d.ChunkCount,
		VectorCount:   d.VectorCount,
		ContentLength: d.ContentLength,
		UploadedAt:    d.UploadedAt,
		ProcessedAt:   d.ProcessedAt,
		UpdatedAt:     time.Now().UTC(),
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		ID:            m.ID,
		Title:         m.Title,
		Filename:      m.Filename,
		FileType:      m.FileType,
		FileSize:      m.FileSize,
		StorageKey:    m.StorageKey,
		Status:        domain.DocumentStatus(m.Status),
		ErrorMessage:  m.ErrorMessage,
		ChunkCount:    m.ChunkCount,
		VectorCount:   m.VectorCount,
		ContentLength: m.ContentLength,
		UploadedAt:    m.UploadedAt,
		ProcessedAt:   m.ProcessedAt,
	}
}

func messageToModel(m domain.Message) MessageModel {
	return MessageModel{
		ID:         m.ID,
		DocumentID: m.DocumentID,
		Role:       m.Role,
		Content:    m.Content,
		Context:    m.Context,
		CreatedAt:  m.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:         m.ID,
		DocumentID: m.DocumentID,
		Role:       m.Role,
		Content:    m.Content,
		Context:    m.Context,
		CreatedAt:  m.CreatedAt,
	}
}
