package ai

import "context"

// Embedder provides embeddings for text.
type Embedder interface {
	EmbedText(ctx context.Context, text, taskType string) ([]float32, error)
}

// BatchEmbedder optionally supports embedding multiple texts at once.
// Output order matches input order.
type BatchEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

// EmbedAll embeds every text in order, using batch support when the embedder
// offers it and falling back to one call per text otherwise.
func EmbedAll(ctx context.Context, embedder Embedder, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batch, ok := embedder.(BatchEmbedder); ok && len(texts) > 1 {
		return batch.EmbedTexts(ctx, texts, taskType)
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		embedding, err := embedder.EmbedText(ctx, text, taskType)
		if err != nil {
			return nil, err
		}
		out = append(out, embedding)
	}
	return out, nil
}
