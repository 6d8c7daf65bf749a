package embedding

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"rag-chatbot/internal/config"
)

// New creates the embedder selected by cfg.Provider.
func New(cfg *config.EmbedConfig) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIEmbedder(cfg)
	case "ollama":
		return NewOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// NewOpenAIEmbedder creates an embedder backed by an OpenAI-compatible
// embeddings endpoint.
func NewOpenAIEmbedder(cfg *config.EmbedConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("embedding_model", cfg.Model).Msg("Creating OpenAI embedder")

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// new ollama embedder
func NewOllamaEmbedder(cfg *config.EmbedConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("embedding_model", cfg.Model).Msg("Creating Ollama embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
