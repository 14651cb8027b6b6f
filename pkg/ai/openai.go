package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient calls any OpenAI-compatible API (OpenAI, vLLM, LiteLLM,
// LocalAI, Deepseek, OpenRouter, self-hosted models, etc.).
// baseURL should include the /v1 prefix, e.g. "https://api.openai.com/v1".
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIClient builds an OpenAI-compatible client.
// apiKey can be empty for local models that do not require authentication.
func NewOpenAIClient(baseURL, apiKey string) *OpenAIClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// EmbedTexts generates embeddings via the /embeddings endpoint, order preserved.
func (c *OpenAIClient) EmbedTexts(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("openai embedding model required")
	}
	reqBody := oaiEmbedRequest{Model: model, Input: texts}
	var resp oaiEmbedResponse
	if err := c.doJSON(ctx, "/embeddings", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("openai embedding index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// GenerateText produces a chat completion via /chat/completions.
func (c *OpenAIClient) GenerateText(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", fmt.Errorf("openai generation model required")
	}
	messages := make([]oaiMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: userPrompt})

	var resp oaiChatResponse
	if err := c.doJSON(ctx, "/chat/completions", oaiChatRequest{Model: model, Messages: messages}, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai api")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from openai api")
	}
	return text, nil
}

func (c *OpenAIClient) doJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("openai api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("openai api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// OpenAIEmbedder wraps OpenAIClient with a fixed embedding model.
type OpenAIEmbedder struct {
	client *OpenAIClient
	model  string
}

// NewOpenAIEmbedder builds an OpenAI-compatible embedder.
func NewOpenAIEmbedder(client *OpenAIClient, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model}
}

// EmbedText returns an embedding for one text.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text, taskType string) ([]float32, error) {
	out, err := e.client.EmbedTexts(ctx, e.model, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedTexts returns embeddings for multiple texts.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	return e.client.EmbedTexts(ctx, e.model, texts)
}

// OpenAIGenerator wraps OpenAIClient with a fixed generation model.
type OpenAIGenerator struct {
	client *OpenAIClient
	model  string
}

// NewOpenAIGenerator builds an OpenAI-compatible TextGenerator.
func NewOpenAIGenerator(client *OpenAIClient, model string) *OpenAIGenerator {
	return &OpenAIGenerator{client: client, model: model}
}

// GenerateText implements TextGenerator using the chat completions API.
func (g *OpenAIGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.client.GenerateText(ctx, g.model, systemPrompt, userPrompt)
}

// OpenAI-compatible request/response types.

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type oaiEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
