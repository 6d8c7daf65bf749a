package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "What is Go?", body["question"])
		_, _ = w.Write([]byte(`{"answer":"A language."}`))
	}))
	defer srv.Close()

	answer, err := New(srv.URL + "/").Chat(context.Background(), "What is Go?")
	require.NoError(t, err)
	assert.Equal(t, "A language.", answer)
}

func TestClient_ChatPlain_StatusError(t *testing.T) {
	const body = `{"detail":"chat_plain error: 401 unauthorized","kind":"llm"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat_plain", r.URL.Path)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := New(srv.URL).ChatPlain(context.Background(), "ping")
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, body, err.Error())
}

func TestClient_Ingest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.txt")
	require.NoError(t, os.WriteFile(path, []byte("some guide text"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ingest", r.URL.Path)
		file, header, err := r.FormFile("upload")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "guide.txt", header.Filename)
		assert.Equal(t, "some guide text", string(data))
		_, _ = w.Write([]byte(`{"status":"ok","chunks_indexed":2}`))
	}))
	defer srv.Close()

	n, err := New(srv.URL).Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestClient_Ingest_MissingFile(t *testing.T) {
	_, err := New("http://127.0.0.1:1").Ingest(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestClient_HealthAndCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`{"status":"ok","message":"RAG API is running."}`))
		case "/collection":
			_, _ = w.Write([]byte(`{"collection":"docs","chunks":12}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, srv.Client())
	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	coll, err := c.Collection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "docs", coll.Collection)
	assert.Equal(t, 12, coll.Chunks)
}
