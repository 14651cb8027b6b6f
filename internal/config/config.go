// Package config loads service configuration from YAML with environment
// variable overrides for deployment secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location relative to the working dir.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL string `yaml:"databaseURL"`

	// pinecone or pgvector
	VectorProvider    string `yaml:"vectorProvider"`
	PineconeHost      string `yaml:"pineconeHost"`
	PineconeAPIKey    string `yaml:"pineconeApiKey"`
	PineconeIndexName string `yaml:"pineconeIndexName"`
	EmbeddingDim      int    `yaml:"embeddingDim"`

	// gemini, ollama, or openai
	AIProvider     string `yaml:"aiProvider"`
	GeminiAPIKey   string `yaml:"geminiApiKey"`
	ChatModel      string `yaml:"chatModel"`
	EmbeddingModel string `yaml:"embeddingModel"`
	OllamaBaseURL  string `yaml:"ollamaBaseURL"`
	OpenAIBaseURL  string `yaml:"openaiBaseURL"`
	OpenAIAPIKey   string `yaml:"openaiApiKey"`

	RedisAddr            string `yaml:"redisAddr"`
	RedisPassword        string `yaml:"redisPassword"`
	UploadLimitPerMinute int    `yaml:"uploadLimitPerMinute"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	MaxUploadMB  int `yaml:"maxUploadMB"`
	ChunkSize    int `yaml:"chunkSize"`
	ChunkOverlap int `yaml:"chunkOverlap"`
	TopK         int `yaml:"topK"`

	TrustedProxies []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("PINECONE_HOST"); v != "" {
		cfg.PineconeHost = v
	}
	if v := os.Getenv("PINECONE_API_KEY"); v != "" {
		cfg.PineconeAPIKey = v
	}
	if v := os.Getenv("PINECONE_INDEX_NAME"); v != "" {
		cfg.PineconeIndexName = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.OllamaBaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("DOCCHAT_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChunkSize = n
		}
	}
	if v := os.Getenv("DOCCHAT_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChunkOverlap = n
		}
	}
	if v := os.Getenv("DOCCHAT_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxUploadMB = n
		}
	}
	if v := os.Getenv("DOCCHAT_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TopK = n
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.MaxUploadMB == 0 {
		cfg.MaxUploadMB = 100
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 800
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = 120
	}
	if cfg.TopK == 0 {
		cfg.TopK = 4
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}
	if cfg.VectorProvider == "" {
		cfg.VectorProvider = "pinecone"
	}
	if cfg.AIProvider == "" {
		cfg.AIProvider = "gemini"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	switch cfg.VectorProvider {
	case "pinecone":
		if strings.TrimSpace(cfg.PineconeHost) == "" || strings.TrimSpace(cfg.PineconeAPIKey) == "" {
			return errors.New("config: pinecone provider requires pineconeHost and PINECONE_API_KEY")
		}
	case "pgvector":
	default:
		return fmt.Errorf("config: unknown vectorProvider %q (pinecone or pgvector)", cfg.VectorProvider)
	}
	switch cfg.AIProvider {
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return errors.New("config: gemini provider requires GEMINI_API_KEY")
		}
	case "ollama":
	case "openai":
		if strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
			return errors.New("config: openai provider requires openaiBaseURL")
		}
	default:
		return fmt.Errorf("config: unknown aiProvider %q (gemini, ollama, or openai)", cfg.AIProvider)
	}
	if cfg.MaxUploadMB <= 0 {
		return errors.New("config: maxUploadMB must be > 0")
	}
	if cfg.ChunkSize <= 0 {
		return errors.New("config: chunkSize must be > 0 (set in config.yaml or DOCCHAT_CHUNK_SIZE)")
	}
	if cfg.ChunkOverlap < 0 {
		return errors.New("config: chunkOverlap must be >= 0 (set in config.yaml or DOCCHAT_CHUNK_OVERLAP)")
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return errors.New("config: chunkOverlap must be smaller than chunkSize")
	}
	if cfg.UploadLimitPerMinute < 0 {
		return errors.New("config: uploadLimitPerMinute must be >= 0")
	}
	if cfg.UploadLimitPerMinute > 0 && cfg.RedisAddr == "" {
		return errors.New("config: uploadLimitPerMinute requires redisAddr (or REDIS_ADDR)")
	}
	return nil
}
