package helper

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/config"
)

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	require.NoError(t, err)
	b, err := GenerateUUID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	_, err = uuid.Parse(a)
	assert.NoError(t, err)
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, map[string]int{"chunks": 3})
	assert.Equal(t, "{\n  \"chunks\": 3\n}\n", buf.String())
}

func TestCreateFolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "chroma")
	require.NoError(t, CreateFolder(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	require.NoError(t, CreateFolder(path))
}

func TestInitLogger(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	logFile := filepath.Join(t.TempDir(), "chat.log")
	closer, err := InitLogger(config.LogConfig{Level: "debug", Format: "json", File: logFile})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	require.NoError(t, closer.Close())

	_, err = InitLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
