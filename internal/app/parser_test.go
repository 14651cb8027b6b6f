package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func parserApp(t *testing.T, size, overlap int) *App {
	t.Helper()
	return &App{chunkSize: size, chunkOverlap: overlap}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestParsePlainText(t *testing.T) {
	app := parserApp(t, 1000, 100)
	path := writeTemp(t, "notes.txt", "  hello   world\n\nsecond\tline  ")

	chunks, contentLength, err := app.parseAndChunk("notes.txt", path)
	if err != nil {
		t.Fatalf("parseAndChunk: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].Content != "hello world second line" {
		t.Fatalf("content = %q", chunks[0].Content)
	}
	if contentLength != len([]rune("hello world second line")) {
		t.Fatalf("contentLength = %d", contentLength)
	}
}

func TestParseEmptyFile(t *testing.T) {
	app := parserApp(t, 1000, 100)
	path := writeTemp(t, "blank.txt", " \n\t ")

	chunks, contentLength, err := app.parseAndChunk("blank.txt", path)
	if err != nil {
		t.Fatalf("parseAndChunk: %v", err)
	}
	if len(chunks) != 0 || contentLength != 0 {
		t.Fatalf("chunks=%d contentLength=%d, want empty", len(chunks), contentLength)
	}
}

func TestParseStripsNULBytes(t *testing.T) {
	app := parserApp(t, 1000, 100)
	path := writeTemp(t, "dirty.txt", "alpha\x00beta")

	chunks, _, err := app.parseAndChunk("dirty.txt", path)
	if err != nil {
		t.Fatalf("parseAndChunk: %v", err)
	}
	if len(chunks) != 1 || strings.ContainsRune(chunks[0].Content, 0) {
		t.Fatalf("chunks = %+v", chunks)
	}
}

func TestChunkTextIndexesAndOverlap(t *testing.T) {
	app := parserApp(t, 10, 3)
	text := strings.Repeat("abcdefghij", 3)
	path := writeTemp(t, "long.txt", text)

	chunks, _, err := app.parseAndChunk("long.txt", path)
	if err != nil {
		t.Fatalf("parseAndChunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want several", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Fatalf("chunk %d has index %d", i, chunk.Index)
		}
		if n := len([]rune(chunk.Content)); n > 10 {
			t.Fatalf("chunk %d length %d exceeds size", i, n)
		}
	}
}

func TestChunkTextOverlapCarriesText(t *testing.T) {
	parts := chunkText("0123456789abcdefghij", 10, 4)
	if len(parts) < 2 {
		t.Fatalf("parts = %v", parts)
	}
	if !strings.HasPrefix(parts[1], "6789") {
		t.Fatalf("second chunk %q does not start inside the first window", parts[1])
	}
}

func TestChunkTextDegenerateOverlap(t *testing.T) {
	// overlap >= size must not loop forever
	parts := chunkText("abcdefghij", 4, 4)
	if len(parts) == 0 {
		t.Fatal("no chunks produced")
	}
	for _, part := range parts {
		if len(part) > 4 {
			t.Fatalf("chunk %q exceeds size", part)
		}
	}
}
