package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"docchat/internal/app"
	"docchat/internal/ratelimit"
	"docchat/pkg/store"
	"docchat/pkg/vector"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedText(ctx context.Context, text, taskType string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

type stubVectorStore struct {
	records []vector.Record
	matches []vector.Match
}

func (s *stubVectorStore) Upsert(ctx context.Context, records []vector.Record) error {
	s.records = append(s.records, records...)
	return nil
}

func (s *stubVectorStore) Query(ctx context.Context, embedding []float32, topK int, documentID string) ([]vector.Match, error) {
	return s.matches, nil
}

func (s *stubVectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return nil
}

type stubGenerator struct{ reply string }

func (s stubGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if s.reply == "" {
		return "", errors.New("generator unavailable")
	}
	return s.reply, nil
}

func newTestServer(t *testing.T, vectors *stubVectorStore, limiter *ratelimit.FixedWindowLimiter) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	a, err := app.New(app.Config{
		Store:     mem,
		Vectors:   vectors,
		Embedder:  stubEmbedder{},
		Generator: stubGenerator{reply: "grounded answer"},
		ChunkSize: 50,
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	srv, err := New(Config{App: a, UploadLimiter: limiter})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, mem
}

func multipartUpload(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	writer.Close()
	resp, err := http.Post(url+"/api/upload", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestUploadEndpoint(t *testing.T) {
	vectors := &stubVectorStore{}
	ts, _ := newTestServer(t, vectors, nil)

	content := strings.Repeat("a document about gophers and their habits ", 4)
	resp := multipartUpload(t, ts.URL, "gophers.txt", content)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	documentID, _ := body["documentId"].(string)
	if !strings.HasPrefix(documentID, "doc-") {
		t.Fatalf("documentId = %q", documentID)
	}
	msg, _ := body["message"].(string)
	if !strings.HasPrefix(msg, "Successfully processed ") || !strings.Contains(msg, " chunks and stored ") {
		t.Fatalf("message = %q", msg)
	}
	stats, ok := body["stats"].(map[string]any)
	if !ok {
		t.Fatalf("stats missing: %v", body)
	}
	if stats["chunkCount"].(float64) != float64(len(vectors.records)) {
		t.Fatalf("stats = %v, stored %d vectors", stats, len(vectors.records))
	}
}

func TestUploadEndpointThreeChunkScenario(t *testing.T) {
	vectors := &stubVectorStore{}
	ts, _ := newTestServer(t, vectors, nil)

	// 120 runes with a 50-rune chunk size yields exactly 3 chunks.
	resp := multipartUpload(t, ts.URL, "three.txt", strings.Repeat("x", 120))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "3 chunks") || !strings.Contains(msg, "3 vectors") {
		t.Fatalf("message = %q", msg)
	}
	if len(vectors.records) != 3 {
		t.Fatalf("stored %d vectors, want 3", len(vectors.records))
	}
	for i, record := range vectors.records {
		if record.Metadata.ChunkIndex != i {
			t.Fatalf("record %d has chunkIndex %d", i, record.Metadata.ChunkIndex)
		}
	}
}

func TestUploadEndpointMissingFile(t *testing.T) {
	ts, _ := newTestServer(t, &stubVectorStore{}, nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("other", "value")
	writer.Close()
	resp, err := http.Post(ts.URL+"/api/upload", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "No file uploaded" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestUploadEndpointEmptyContent(t *testing.T) {
	ts, _ := newTestServer(t, &stubVectorStore{}, nil)

	resp := multipartUpload(t, ts.URL, "blank.txt", "   ")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUploadRateLimit(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redis.Addr(), "", "uploads", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	ts, _ := newTestServer(t, &stubVectorStore{}, limiter)

	resp1 := multipartUpload(t, ts.URL, "one.txt", "first document body")
	resp1.Body.Close()
	if resp1.StatusCode != http.StatusOK {
		t.Fatalf("first upload status = %d", resp1.StatusCode)
	}
	resp2 := multipartUpload(t, ts.URL, "two.txt", "second document body")
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second upload status = %d, want 429", resp2.StatusCode)
	}
	if resp2.Header.Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}
}

func TestDocumentEndpoints(t *testing.T) {
	vectors := &stubVectorStore{}
	ts, _ := newTestServer(t, vectors, nil)

	resp := multipartUpload(t, ts.URL, "first.txt", "content of the first uploaded document")
	body := decodeBody(t, resp)
	documentID := body["documentId"].(string)

	listResp, err := http.Get(ts.URL + "/api/documents")
	if err != nil {
		t.Fatalf("list request: %v", err)
	}
	listBody := decodeBody(t, listResp)
	if listBody["count"].(float64) != 1 {
		t.Fatalf("count = %v", listBody["count"])
	}

	getResp, err := http.Get(ts.URL + "/api/documents/" + documentID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	getBody := decodeBody(t, getResp)
	if getBody["status"] != "completed" {
		t.Fatalf("status = %v", getBody["status"])
	}

	missingResp, err := http.Get(ts.URL + "/api/documents/doc-0-missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	missingResp.Body.Close()
	if missingResp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", missingResp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/documents/"+documentID, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", delResp.StatusCode)
	}
	goneResp, _ := http.Get(ts.URL + "/api/documents/" + documentID)
	goneResp.Body.Close()
	if goneResp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted document still served: %d", goneResp.StatusCode)
	}
}

func TestChatEndpoint(t *testing.T) {
	vectors := &stubVectorStore{}
	ts, _ := newTestServer(t, vectors, nil)

	resp := multipartUpload(t, ts.URL, "guide.txt", "gophers are small burrowing rodents found in north america")
	body := decodeBody(t, resp)
	documentID := body["documentId"].(string)
	vectors.matches = []vector.Match{
		{ID: documentID + "-chunk-0", Score: 0.88, Metadata: vector.Metadata{DocumentID: documentID, Content: "gophers are small burrowing rodents"}},
	}

	chatBody := []byte(`{"documentId":"` + documentID + `","message":"what are gophers?"}`)
	chatResp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(chatBody))
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}
	answer := decodeBody(t, chatResp)
	if answer["answer"] != "grounded answer" {
		t.Fatalf("answer = %v", answer["answer"])
	}
	sources, ok := answer["sources"].([]any)
	if !ok || len(sources) != 1 {
		t.Fatalf("sources = %v", answer["sources"])
	}

	historyResp, err := http.Get(ts.URL + "/api/chat/" + documentID)
	if err != nil {
		t.Fatalf("history request: %v", err)
	}
	history := decodeBody(t, historyResp)
	messages, ok := history["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v", history["messages"])
	}
	first := messages[0].(map[string]any)
	parts := first["parts"].([]any)
	part := parts[0].(map[string]any)
	if part["type"] != "text" || part["text"] != "what are gophers?" {
		t.Fatalf("first message part = %v", part)
	}
}

func TestChatEndpointValidation(t *testing.T) {
	ts, _ := newTestServer(t, &stubVectorStore{}, nil)

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"message":"hi"}`))
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing documentId status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"documentId":"doc-0-missing","message":"hi"}`))
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing document status = %d, want 404", resp.StatusCode)
	}
}
