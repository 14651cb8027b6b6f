package store

import "time"

// GORM models used for persistence.
type DocumentModel struct {
	ID            string `gorm:"primaryKey"`
	Title         string `gorm:"not null"`
	Filename      string `gorm:"not null"`
	FileType      string `gorm:"not null"`
	FileSize      int64  `gorm:"not null"`
	StorageKey    string
	Status        string `gorm:"not null;index"`
	ErrorMessage  string
	ChunkCount    int
	VectorCount   int
	ContentLength int
	UploadedAt    time.Time `gorm:"not null;index"`
	ProcessedAt   *time.Time
	UpdatedAt     time.Time
}

type MessageModel struct {
	ID         string    `gorm:"primaryKey"`
	DocumentID string    `gorm:"not null;index"`
	Role       string    `gorm:"not null"`
	Content    string    `gorm:"type:text;not null"`
	Context    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null;index"`
}
