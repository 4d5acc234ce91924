package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pdftalk/internal/models"
)

// EmbeddingConfig points at an OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// LLMConfig points at an OpenAI-compatible chat completions endpoint
// (OpenAI, Groq, OpenRouter, local gateway).
type LLMConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Backend              string `yaml:"backend"` // chromem, pinecone, pgvector
	Name                 string `yaml:"name"`
	Dimension            int    `yaml:"dimension"`
	Metric               string `yaml:"metric"`
	APIKeyEnv            string `yaml:"api_key_env"`
	ControllerURL        string `yaml:"controller_url"`
	Cloud                string `yaml:"cloud"`
	Region               string `yaml:"region"`
	Path                 string `yaml:"path"` // chromem persistent directory, empty for in-memory
	DSN                  string `yaml:"dsn"`  // pgvector connection string
	Debug                bool   `yaml:"debug"`
	PollIntervalSecs     int    `yaml:"poll_interval_secs"`
	ProvisionTimeoutSecs int    `yaml:"provision_timeout_secs"`
}

// RAGConfig holds chunking and retrieval parameters.
type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	BatchSize    int `yaml:"batch_size"`
	TopK         int `yaml:"top_k"`
}

type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Index     IndexConfig     `yaml:"index"`
	RAG       RAGConfig       `yaml:"rag"`
}

// Load reads the config file, applies defaults and validates that every
// required credential is present. Missing credentials fail here, at startup,
// not at first use.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *IndexConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

func (c *IndexConfig) ProvisionTimeout() time.Duration {
	return time.Duration(c.ProvisionTimeoutSecs) * time.Second
}

func applyDefaults(cfg *Config) {
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "EMBEDDING_API_KEY"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "LLM_API_KEY"
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "chromem"
	}
	if cfg.Index.Name == "" {
		cfg.Index.Name = "pdftalk"
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = "dotproduct"
	}
	if cfg.Index.APIKeyEnv == "" {
		cfg.Index.APIKeyEnv = "PINECONE_API_KEY"
	}
	if cfg.Index.Cloud == "" {
		cfg.Index.Cloud = "aws"
	}
	if cfg.Index.PollIntervalSecs == 0 {
		cfg.Index.PollIntervalSecs = 1
	}
	if cfg.Index.ProvisionTimeoutSecs == 0 {
		cfg.Index.ProvisionTimeoutSecs = 120
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = models.DefaultChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = models.DefaultChunkOverlap
	}
	if cfg.RAG.BatchSize == 0 {
		cfg.RAG.BatchSize = models.DefaultBatchSize
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = models.DefaultTopK
	}
}

func validate(cfg *Config) error {
	if cfg.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if os.Getenv(cfg.Embedding.APIKeyEnv) == "" {
		return fmt.Errorf("missing embedding API key in env %s", cfg.Embedding.APIKeyEnv)
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if os.Getenv(cfg.LLM.APIKeyEnv) == "" {
		return fmt.Errorf("missing LLM API key in env %s", cfg.LLM.APIKeyEnv)
	}
	if cfg.Index.Dimension <= 0 {
		return fmt.Errorf("index.dimension must be positive")
	}
	switch cfg.Index.Backend {
	case "chromem":
	case "pinecone":
		if os.Getenv(cfg.Index.APIKeyEnv) == "" {
			return fmt.Errorf("missing index API key in env %s", cfg.Index.APIKeyEnv)
		}
	case "pgvector":
		if cfg.Index.DSN == "" {
			return fmt.Errorf("index.dsn is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unknown index backend: %s", cfg.Index.Backend)
	}
	return nil
}
