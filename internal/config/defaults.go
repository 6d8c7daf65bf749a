package config

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120
	DefaultTopK         = 4
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.InferLLM.BaseURL == "" {
		cfg.InferLLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "openai"
	}
	if cfg.EmbedLLM.BaseURL == "" {
		switch cfg.EmbedLLM.Provider {
		case "ollama":
			cfg.EmbedLLM.BaseURL = "http://127.0.0.1:11434"
		default:
			cfg.EmbedLLM.BaseURL = "https://api.openai.com/v1"
		}
	}
	if cfg.EmbedLLM.Model == "" {
		switch cfg.EmbedLLM.Provider {
		case "ollama":
			cfg.EmbedLLM.Model = "nomic-embed-text"
		default:
			cfg.EmbedLLM.Model = "text-embedding-ada-002"
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "chromem"
	}
	if cfg.VectorStore.PersistDir == "" {
		cfg.VectorStore.PersistDir = "data/chroma"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "docs"
	}
	if cfg.Database.Dimensions == 0 {
		cfg.Database.Dimensions = 1536
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = DefaultChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = DefaultTopK
	}
	if cfg.UI.APIURL == "" {
		cfg.UI.APIURL = "http://127.0.0.1:8000"
	}
	if cfg.UI.MaxHistory == 0 {
		cfg.UI.MaxHistory = 200
	}
}
