package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log         LogConfig         `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`
	InferLLM    LLMConfig         `yaml:"infer_llm"`
	EmbedLLM    EmbedConfig       `yaml:"embed_llm"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	RAG         RAGConfig         `yaml:"rag"`
	UI          UIConfig          `yaml:"ui"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
	File   string `yaml:"file"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
	// UploadDir stages uploads before ingestion; empty means the OS temp dir.
	UploadDir   string `yaml:"upload_dir"`
}

// LLMConfig describes an OpenAI-compatible chat completion endpoint.
// Sampling is always at temperature 0 and is not configurable.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
}

// EmbedConfig describes the embedding provider. Provider is "openai" or "ollama".
type EmbedConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

// VectorStoreConfig selects the backend. Type is "chromem" or "pgvector".
type VectorStoreConfig struct {
	Type          string `yaml:"type"`
	PersistDir    string `yaml:"persist_dir"`
	Collection    string `yaml:"collection"`
	EncryptionKey string `yaml:"encryption_key"`
	Compress      bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	URL        string `yaml:"url"`
	Dimensions int    `yaml:"dimensions"`
	Debug      bool   `yaml:"debug"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

type UIConfig struct {
	APIURL     string `yaml:"api_url"`
	MaxHistory int    `yaml:"max_history"`
}

// Load builds the process configuration: the optional .env file, then the
// optional YAML file, then environment overrides, then defaults. A missing
// .env or YAML file is not an error.
func Load(envPath, path string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.InferLLM.Model, "OPENROUTER_MODEL")
	setString(&cfg.InferLLM.Key, "OPENROUTER_API_KEY")
	setString(&cfg.InferLLM.BaseURL, "OPENROUTER_BASE_URL")
	setString(&cfg.EmbedLLM.Provider, "EMBEDDING_PROVIDER")
	setString(&cfg.EmbedLLM.Model, "EMBEDDING_MODEL")
	setString(&cfg.EmbedLLM.Key, "OPENAI_API_KEY")
	setString(&cfg.EmbedLLM.BaseURL, "OPENAI_BASE_URL")
	if cfg.EmbedLLM.Provider == "ollama" {
		setString(&cfg.EmbedLLM.BaseURL, "OLLAMA_URL")
	}
	setString(&cfg.VectorStore.Type, "VECTOR_STORE")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.UI.APIURL, "API_URL")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if v, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		cfg.Server.Port = v
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate reports settings the serving paths cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.InferLLM.Model == "" {
		errs = append(errs, errors.New("infer_llm.model (OPENROUTER_MODEL) is required"))
	}
	if c.InferLLM.Key == "" {
		errs = append(errs, errors.New("infer_llm.key (OPENROUTER_API_KEY) is required"))
	}
	switch c.EmbedLLM.Provider {
	case "openai":
		if c.EmbedLLM.Key == "" {
			errs = append(errs, errors.New("embed_llm.key (OPENAI_API_KEY) is required for the openai provider"))
		}
	case "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.EmbedLLM.Provider))
	}
	switch c.VectorStore.Type {
	case "chromem":
	case "pgvector":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url (DATABASE_URL) is required for the pgvector store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vector store %q", c.VectorStore.Type))
	}
	return errors.Join(errs...)
}

// Addr is the listen address of the HTTP API.
func (c *Config) Addr() string {
	return c.Server.Addr()
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
