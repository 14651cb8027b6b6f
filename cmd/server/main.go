package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docchat/internal/app"
	"docchat/internal/config"
	"docchat/internal/ratelimit"
	"docchat/internal/server"
	"docchat/internal/util"
	"docchat/pkg/ai"
	"docchat/pkg/storage"
	"docchat/pkg/store"
	"docchat/pkg/vector"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	docStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init document store: %v", err)
	}
	defer docStore.Close()

	vectors, err := newVectorStore(cfg, docStore)
	if err != nil {
		log.Fatalf("failed to init vector store: %v", err)
	}

	embedder, generator, err := newAIClients(cfg)
	if err != nil {
		log.Fatalf("failed to init ai clients: %v", err)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
		objects = minioStore
	}

	appCore, err := app.New(app.Config{
		Store:          docStore,
		Vectors:        vectors,
		Embedder:       embedder,
		Generator:      generator,
		Objects:        objects,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		TopK:           cfg.TopK,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var uploadLimiter *ratelimit.FixedWindowLimiter
	if cfg.UploadLimitPerMinute > 0 {
		uploadLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "upload", cfg.UploadLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init upload rate limiter: %v", err)
		}
	}

	var trustedProxies *util.TrustedProxies
	if len(cfg.TrustedProxies) > 0 {
		trustedProxies, err = util.NewTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			log.Fatalf("failed to parse trusted proxies: %v", err)
		}
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		UploadLimiter:  uploadLimiter,
		TrustedProxies: trustedProxies,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("docchat server listening", "addr", addr, "vectorProvider", cfg.VectorProvider, "aiProvider", cfg.AIProvider)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func newVectorStore(cfg config.FileConfig, docStore *store.GormStore) (vector.Store, error) {
	switch cfg.VectorProvider {
	case "pgvector":
		return vector.NewPgVectorStore(docStore.DB(), cfg.EmbeddingDim)
	default:
		indexName := cfg.PineconeIndexName
		if indexName == "" {
			indexName = vector.DefaultIndexName
		}
		return vector.NewPineconeStore(cfg.PineconeHost, cfg.PineconeAPIKey, indexName)
	}
}

func newAIClients(cfg config.FileConfig) (ai.Embedder, ai.TextGenerator, error) {
	switch cfg.AIProvider {
	case "ollama":
		client := ai.NewOllamaClient(cfg.OllamaBaseURL)
		embedModel := cfg.EmbeddingModel
		if embedModel == "" {
			embedModel = "nomic-embed-text"
		}
		chatModel := cfg.ChatModel
		if chatModel == "" {
			chatModel = "llama3.1"
		}
		return ai.NewOllamaEmbedder(client, embedModel, cfg.EmbeddingDim), ai.NewOllamaGenerator(client, chatModel), nil
	case "openai":
		client := ai.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
		embedModel := cfg.EmbeddingModel
		if embedModel == "" {
			embedModel = "text-embedding-3-small"
		}
		chatModel := cfg.ChatModel
		if chatModel == "" {
			chatModel = "gpt-4o-mini"
		}
		return ai.NewOpenAIEmbedder(client, embedModel), ai.NewOpenAIGenerator(client, chatModel), nil
	default:
		client, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, err
		}
		embedModel := cfg.EmbeddingModel
		if embedModel == "" {
			embedModel = "text-embedding-004"
		}
		chatModel := cfg.ChatModel
		if chatModel == "" {
			chatModel = "gemini-2.0-flash"
		}
		return ai.NewGeminiEmbedder(client, embedModel), ai.NewGeminiGenerator(client, chatModel), nil
	}
}
