// Package server exposes the HTTP API: document upload, document listing,
// and chat against an ingested document.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docchat/internal/app"
	"docchat/internal/ratelimit"
	"docchat/internal/util"
)

// multipartOverhead is slack for form boundaries and headers on top of the
// document payload cap.
const multipartOverhead = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	UploadLimiter  *ratelimit.FixedWindowLimiter // optional
	TrustedProxies *util.TrustedProxies          // optional
}

// Server exposes the public HTTP endpoints.
type Server struct {
	app            *app.App
	uploadLimiter  *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app required")
	}
	s := &Server{
		app:            cfg.App,
		uploadLimiter:  cfg.UploadLimiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the shared middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("docchat", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/upload", s.handleUpload)
	s.mux.HandleFunc("/api/documents", s.handleDocuments)
	s.mux.HandleFunc("/api/documents/", s.handleDocumentByID)
	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.HandleFunc("/api/chat/", s.handleChatHistory)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.uploadLimiter, "too many uploads, try again later") {
		return
	}
	maxUpload := s.app.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, "File size exceeds limit (100MB)")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	// A client disconnect must not abandon a half-ingested document.
	ctx := context.WithoutCancel(r.Context())
	result, err := s.app.UploadDocument(ctx, header.Filename, file, header.Size)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrFileTooLarge):
			writeError(w, http.StatusBadRequest, "File size exceeds limit (100MB)")
		case errors.Is(err, app.ErrNoContent):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "Failed to process document",
				"details": err.Error(),
			})
		}
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:    true,
		DocumentID: result.DocumentID,
		Filename:   result.Filename,
		Message:    fmt.Sprintf("Successfully processed %d chunks and stored %d vectors", result.ChunkCount, result.VectorCount),
		Stats: uploadStats{
			OriginalSize:  result.OriginalSize,
			ChunkCount:    result.ChunkCount,
			VectorCount:   result.VectorCount,
			ContentLength: result.ContentLength,
		},
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	docs, err := s.app.ListDocuments()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": docs,
		"count": len(docs),
	})
}

func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if rest, ok := strings.CutSuffix(id, "/download"); ok {
		s.handleDownload(w, r, rest)
		return
	}
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		doc, ok, err := s.app.GetDocument(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			notFound(w, "document not found")
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := s.app.DeleteDocument(r.Context(), id); err != nil {
			if errors.Is(err, app.ErrDocumentNotFound) {
				notFound(w, "document not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	url, err := s.app.DownloadURL(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			notFound(w, "document not found")
		case errors.Is(err, app.ErrNoArchive):
			notFound(w, "original file not archived")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		writeError(w, http.StatusBadRequest, "documentId required")
		return
	}
	answer, err := s.app.Ask(r.Context(), req.DocumentID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmptyQuestion):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			notFound(w, "document not found")
		case errors.Is(err, app.ErrDocumentNotReady):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to generate answer")
		}
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	documentID := strings.TrimPrefix(r.URL.Path, "/api/chat/")
	if documentID == "" || strings.Contains(documentID, "/") {
		http.NotFound(w, r)
		return
	}
	doc, ok, err := s.app.GetDocument(documentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		notFound(w, "document not found")
		return
	}
	messages, err := s.app.History(documentID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]historyMessage, 0, len(messages))
	for _, m := range messages {
		items = append(items, historyMessage{
			ID:        m.ID,
			Role:      m.Role,
			Parts:     []historyPart{{Type: "text", Text: m.Content}},
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"messages": items,
	})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
