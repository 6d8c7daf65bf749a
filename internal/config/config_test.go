package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENROUTER_MODEL", "OPENROUTER_API_KEY", "OPENROUTER_BASE_URL",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"OLLAMA_URL", "VECTOR_STORE", "DATABASE_URL", "API_URL", "LOG_LEVEL", "PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data/chroma", cfg.VectorStore.PersistDir)
	assert.Equal(t, "docs", cfg.VectorStore.Collection)
	assert.Equal(t, "chromem", cfg.VectorStore.Type)
	assert.Equal(t, 800, cfg.RAG.ChunkSize)
	assert.Equal(t, 120, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 4, cfg.RAG.TopK)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.InferLLM.BaseURL)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.UI.APIURL)
	assert.Equal(t, "127.0.0.1:8000", cfg.Addr())
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
infer_llm:
  model: "from-yaml"
vector_store:
  collection: "papers"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("OPENROUTER_MODEL", "from-env")
	t.Setenv("API_URL", "http://backend:8000")

	cfg, err := Load("", path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.InferLLM.Model)
	assert.Equal(t, "papers", cfg.VectorStore.Collection)
	assert.Equal(t, "http://backend:8000", cfg.UI.APIURL)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("OPENROUTER_API_KEY=sk-test\n"), 0o600))
	// godotenv never overrides a variable that exists, even when empty.
	require.NoError(t, os.Unsetenv("OPENROUTER_API_KEY"))

	cfg, err := Load(envPath, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.InferLLM.Key)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), ".env"), "")
	require.NoError(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err := Load("", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoad_OllamaDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.EmbedLLM.BaseURL)
	assert.Equal(t, "nomic-embed-text", cfg.EmbedLLM.Model)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENROUTER_MODEL")
	assert.Contains(t, err.Error(), "OPENROUTER_API_KEY")
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	cfg.InferLLM.Model = "m"
	cfg.InferLLM.Key = "k"
	cfg.EmbedLLM.Key = "e"
	assert.NoError(t, cfg.Validate())

	cfg.VectorStore.Type = "pgvector"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
