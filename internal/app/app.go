// Package app binds the ingestion pipeline together: validate an upload,
// record its metadata, extract and chunk text, embed the chunks, and store
// the vectors. It also answers chat queries against ingested documents.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docchat/internal/util"
	"docchat/pkg/ai"
	"docchat/pkg/domain"
	"docchat/pkg/storage"
	"docchat/pkg/store"
	"docchat/pkg/vector"
)

// DefaultMaxUploadBytes caps uploads at 100 MiB.
const DefaultMaxUploadBytes = 100 * 1024 * 1024

// Config holds runtime configuration for the core application.
type Config struct {
	Store          store.Store
	Vectors        vector.Store
	Embedder       ai.Embedder
	Generator      ai.TextGenerator
	Objects        storage.ObjectStore // optional raw-file archival
	MaxUploadBytes int64
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
}

// App runs the ingestion pipeline and chat retrieval.
type App struct {
	store          store.Store
	vectors        vector.Store
	embedder       ai.Embedder
	generator      ai.TextGenerator
	objects        storage.ObjectStore
	maxUploadBytes int64
	chunkSize      int
	chunkOverlap   int
	topK           int
}

// New constructs the application. Collaborator handles are constructed by the
// caller and owned for the process lifetime; nothing is lazily initialized.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if cfg.Vectors == nil {
		return nil, fmt.Errorf("vector store required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("text generator required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 800
	}
	chunkOverlap := cfg.ChunkOverlap
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 4
	}
	return &App{
		store:          cfg.Store,
		vectors:        cfg.Vectors,
		embedder:       cfg.Embedder,
		generator:      cfg.Generator,
		objects:        cfg.Objects,
		maxUploadBytes: maxUploadBytes,
		chunkSize:      chunkSize,
		chunkOverlap:   chunkOverlap,
		topK:           topK,
	}, nil
}

// MaxUploadBytes reports the configured upload ceiling.
func (a *App) MaxUploadBytes() int64 {
	return a.maxUploadBytes
}

// UploadResult summarizes a completed ingestion.
type UploadResult struct {
	DocumentID    string
	Filename      string
	OriginalSize  int64
	ChunkCount    int
	VectorCount   int
	ContentLength int
}

// UploadDocument runs the full pipeline inline: validate, record metadata,
// archive (when configured), extract + chunk, embed, store vectors, finalize.
// Steps run strictly in sequence; the first failure short-circuits the rest
// and moves the document record to the error state.
func (a *App) UploadDocument(ctx context.Context, filename string, r io.Reader, size int64) (UploadResult, error) {
	if size > a.maxUploadBytes {
		return UploadResult{}, ErrFileTooLarge
	}
	documentID := util.NewDocumentID()
	doc := domain.Document{
		ID:         documentID,
		Title:      titleFromName(filename),
		Filename:   filepath.Base(filename),
		FileType:   fileTypeFromName(filename),
		FileSize:   size,
		Status:     domain.StatusProcessing,
		UploadedAt: time.Now().UTC(),
	}
	if a.objects != nil {
		doc.StorageKey = storage.DocumentKey(documentID, filename)
	}
	if err := a.store.CreateDocument(doc); err != nil {
		return UploadResult{}, fmt.Errorf("create document: %w", err)
	}

	tempPath, err := spoolToTemp(r, filename)
	if err != nil {
		a.failDocument(documentID, err)
		return UploadResult{}, fmt.Errorf("buffer upload: %w", err)
	}
	defer os.Remove(tempPath)

	if a.objects != nil {
		if err := a.archiveOriginal(ctx, doc, tempPath); err != nil {
			a.failDocument(documentID, err)
			return UploadResult{}, fmt.Errorf("archive upload: %w", err)
		}
	}

	chunks, contentLength, err := a.parseAndChunk(filename, tempPath)
	if err != nil {
		a.failDocument(documentID, err)
		return UploadResult{}, fmt.Errorf("extract text: %w", err)
	}
	if len(chunks) == 0 {
		a.failDocument(documentID, ErrNoContent)
		return UploadResult{}, ErrNoContent
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Content)
	}
	embeddings, err := ai.EmbedAll(ctx, a.embedder, texts, "RETRIEVAL_DOCUMENT")
	if err != nil {
		a.failDocument(documentID, err)
		return UploadResult{}, fmt.Errorf("generate embeddings: %w", err)
	}

	written, err := vector.StoreChunks(ctx, a.vectors, documentID, chunks, embeddings, vector.DocumentMeta{
		Title:    doc.Title,
		Filename: doc.Filename,
		FileType: doc.FileType,
	})
	if err != nil {
		a.failDocument(documentID, err)
		return UploadResult{}, fmt.Errorf("store vectors: %w", err)
	}

	processedAt := time.Now().UTC()
	status := domain.StatusCompleted
	chunkCount := len(chunks)
	if err := a.store.UpdateDocument(documentID, store.DocumentUpdate{
		Status:        &status,
		ProcessedAt:   &processedAt,
		ChunkCount:    &chunkCount,
		VectorCount:   &written,
		ContentLength: &contentLength,
	}); err != nil {
		return UploadResult{}, fmt.Errorf("finalize document: %w", err)
	}
	slog.Info("document ingested",
		"documentId", documentID,
		"chunks", chunkCount,
		"vectors", written,
	)
	return UploadResult{
		DocumentID:    documentID,
		Filename:      doc.Filename,
		OriginalSize:  size,
		ChunkCount:    chunkCount,
		VectorCount:   written,
		ContentLength: contentLength,
	}, nil
}

// failDocument moves the record to the terminal error state. Every failure
// path after record creation goes through here so clients can always learn
// the outcome by polling.
func (a *App) failDocument(documentID string, cause error) {
	status := domain.StatusError
	msg := cause.Error()
	if err := a.store.UpdateDocument(documentID, store.DocumentUpdate{
		Status:       &status,
		ErrorMessage: &msg,
	}); err != nil {
		slog.Error("update document status failed", "documentId", documentID, "err", err)
	}
}

func (a *App) archiveOriginal(ctx context.Context, doc domain.Document, tempPath string) error {
	file, err := os.Open(tempPath)
	if err != nil {
		return fmt.Errorf("open buffered upload: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat buffered upload: %w", err)
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(doc.Filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return a.objects.Put(ctx, doc.StorageKey, file, info.Size(), contentType)
}

// GetDocument retrieves a document by ID.
func (a *App) GetDocument(id string) (domain.Document, bool, error) {
	return a.store.GetDocument(id)
}

// ListDocuments returns all documents, newest first.
func (a *App) ListDocuments() ([]domain.Document, error) {
	return a.store.ListDocuments()
}

// DeleteDocument removes the document's vectors, archived file, and metadata
// record. Vector and object deletion run concurrently; both are best-effort in
// the sense that errors propagate without retries.
func (a *App) DeleteDocument(ctx context.Context, id string) error {
	doc, ok, err := a.store.GetDocument(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDocumentNotFound
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.vectors.DeleteByDocument(gctx, id)
	})
	if a.objects != nil && doc.StorageKey != "" {
		g.Go(func() error {
			return a.objects.Delete(gctx, doc.StorageKey)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return a.store.DeleteDocument(id)
}

// ErrNoArchive reports that original-file archival is not configured or the
// document predates it.
var ErrNoArchive = errors.New("original file not archived")

// DownloadURL returns a short-lived link to the archived original upload.
func (a *App) DownloadURL(ctx context.Context, id string) (string, error) {
	doc, ok, err := a.store.GetDocument(id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrDocumentNotFound
	}
	if a.objects == nil || doc.StorageKey == "" {
		return "", ErrNoArchive
	}
	return a.objects.PresignGet(ctx, doc.StorageKey, 15*time.Minute)
}

// History returns the chat history for a document in chronological order.
func (a *App) History(documentID string, limit int) ([]domain.Message, error) {
	return a.store.ListMessages(documentID, limit)
}

// Answer is the response to a chat question, with its grounding sources.
type Answer struct {
	DocumentID string          `json:"documentId"`
	Question   string          `json:"question"`
	Answer     string          `json:"answer"`
	Sources    []domain.Source `json:"sources"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Ask answers a question against an ingested document: embed the question,
// retrieve the most similar chunks, generate a grounded answer, and append
// both turns to the conversation.
func (a *App) Ask(ctx context.Context, documentID, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	doc, ok, err := a.store.GetDocument(documentID)
	if err != nil {
		return Answer{}, fmt.Errorf("load document: %w", err)
	}
	if !ok {
		return Answer{}, ErrDocumentNotFound
	}
	if doc.Status != domain.StatusCompleted {
		return Answer{}, ErrDocumentNotReady
	}
	queryEmbedding, err := a.embedder.EmbedText(ctx, question, "RETRIEVAL_QUERY")
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}
	matches, err := a.vectors.Query(ctx, queryEmbedding, a.topK, documentID)
	if err != nil {
		return Answer{}, fmt.Errorf("query vectors: %w", err)
	}
	contextText, sources := buildContext(doc, matches)
	if contextText == "" {
		contextText = "(no relevant excerpts found)"
	}
	systemPrompt := "You are a careful assistant. Answer using only the provided document excerpts and say so when they are insufficient. Cite excerpt numbers."
	userPrompt := fmt.Sprintf("Document: %s\nQuestion: %s\n\nExcerpts:\n%s\n\nAnswer the question using the excerpts above.", doc.Title, question, contextText)
	response, err := a.generator.GenerateText(ctx, systemPrompt, userPrompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	now := time.Now().UTC()
	if err := a.store.AppendMessage(domain.Message{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Role:       "user",
		Content:    question,
		CreatedAt:  now,
	}); err != nil {
		return Answer{}, fmt.Errorf("save user message: %w", err)
	}
	if err := a.store.AppendMessage(domain.Message{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Role:       "assistant",
		Content:    response,
		Context:    contextText,
		CreatedAt:  now.Add(time.Millisecond),
	}); err != nil {
		return Answer{}, fmt.Errorf("save assistant message: %w", err)
	}
	return Answer{
		DocumentID: documentID,
		Question:   question,
		Answer:     response,
		Sources:    sources,
		CreatedAt:  now,
	}, nil
}

func buildContext(doc domain.Document, matches []vector.Match) (string, []domain.Source) {
	var buf strings.Builder
	sources := make([]domain.Source, 0, len(matches))
	for i, match := range matches {
		fmt.Fprintf(&buf, "[%d] %s\n", i+1, match.Metadata.Content)
		sources = append(sources, domain.Source{
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			ChunkID:       match.ID,
			Content:       match.Metadata.Content,
			Similarity:    match.Score,
		})
	}
	return strings.TrimRight(buf.String(), "\n"), sources
}

func spoolToTemp(r io.Reader, filename string) (string, error) {
	ext := filepath.Ext(filename)
	tmpFile, err := os.CreateTemp("", "docchat-*"+ext)
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()
	if _, err := io.Copy(tmpFile, r); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}
	return tmpFile.Name(), nil
}

// titleFromName strips the trailing extension from the filename.
func titleFromName(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	title := strings.TrimSpace(strings.TrimSuffix(base, ext))
	if title == "" {
		return base
	}
	return title
}

// fileTypeFromName returns the lowercased extension without the dot,
// or "unknown" when the filename has none.
func fileTypeFromName(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}
