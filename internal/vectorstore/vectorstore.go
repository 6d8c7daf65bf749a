// Package vectorstore opens the persisted chunk collection behind the
// ingestion and query pipelines.
package vectorstore

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"

	"rag-chatbot/internal/apperror"
	"rag-chatbot/internal/chromemdb"
	"rag-chatbot/internal/config"
	"rag-chatbot/internal/db"
)

// Store is a named, persisted collection of embedded chunks.
type Store interface {
	Name() string
	// Add embeds and persists chunks. It returns after the write is durable.
	Add(ctx context.Context, chunks []schema.Document) error
	// Retrieve returns up to k chunks nearest to query, best first.
	Retrieve(ctx context.Context, query string, k int) ([]schema.Document, error)
	Count(ctx context.Context) (int, error)
}

// Porter is implemented by stores that can be exported to and imported
// from a file.
type Porter interface {
	Export(ctx context.Context, filePath string) error
	Import(ctx context.Context, filePath string) error
}

var (
	mu   sync.Mutex
	open = map[string]Store{}
)

// Connect opens or creates the collection described by cfg. Calls with the
// same backend, location and collection name return the same Store.
func Connect(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (Store, error) {
	key, err := registryKey(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if s, ok := open[key]; ok {
		return s, nil
	}

	var s Store
	switch cfg.VectorStore.Type {
	case "chromem":
		s, err = chromemdb.NewVectorDBManager(cfg.VectorStore.PersistDir, cfg.VectorStore.Collection,
			embedder, cfg.VectorStore.Compress, cfg.VectorStore.EncryptionKey)
	case "pgvector":
		s, err = db.NewStore(ctx, cfg.Database.URL, cfg.VectorStore.Collection,
			cfg.Database.Dimensions, embedder, cfg.Database.Debug)
	}
	if err != nil {
		return nil, apperror.New(apperror.KindStore, "connect", err)
	}

	log.Info().Str("type", cfg.VectorStore.Type).Str("collection", s.Name()).Msg("Opened vector store")
	open[key] = &classified{Store: s, key: key}
	return open[key], nil
}

func registryKey(cfg *config.Config) (string, error) {
	switch cfg.VectorStore.Type {
	case "chromem":
		return "chromem|" + cfg.VectorStore.PersistDir + "|" + cfg.VectorStore.Collection, nil
	case "pgvector":
		return "pgvector|" + cfg.Database.URL + "|" + cfg.VectorStore.Collection, nil
	default:
		return "", apperror.Newf(apperror.KindInvalidInput, "connect", "unknown vector store %q", cfg.VectorStore.Type)
	}
}

// classified marks every backend failure as a store error.
type classified struct {
	Store
	key string
}

// Close releases the backend's resources, if it holds any, and drops the
// store from the registry so the next Connect opens it again.
func (c *classified) Close() error {
	if c.key != "" {
		mu.Lock()
		if open[c.key] == Store(c) {
			delete(open, c.key)
		}
		mu.Unlock()
	}
	if closer, ok := c.Store.(io.Closer); ok {
		return apperror.New(apperror.KindStore, "close", closer.Close())
	}
	return nil
}

func (c *classified) Add(ctx context.Context, chunks []schema.Document) error {
	return apperror.New(apperror.KindStore, "add", c.Store.Add(ctx, chunks))
}

func (c *classified) Retrieve(ctx context.Context, query string, k int) ([]schema.Document, error) {
	docs, err := c.Store.Retrieve(ctx, query, k)
	if err != nil {
		return nil, apperror.New(apperror.KindStore, "retrieve", err)
	}
	return docs, nil
}

func (c *classified) Count(ctx context.Context) (int, error) {
	n, err := c.Store.Count(ctx)
	return n, apperror.New(apperror.KindStore, "count", err)
}

func (c *classified) Export(ctx context.Context, filePath string) error {
	p, ok := c.Store.(Porter)
	if !ok {
		return apperror.Newf(apperror.KindInvalidInput, "export", "%s store does not support export", c.Name())
	}
	return apperror.New(apperror.KindStore, "export", p.Export(ctx, filePath))
}

func (c *classified) Import(ctx context.Context, filePath string) error {
	p, ok := c.Store.(Porter)
	if !ok {
		return apperror.Newf(apperror.KindInvalidInput, "import", "%s store does not support import", c.Name())
	}
	return apperror.New(apperror.KindStore, "import", p.Import(ctx, filePath))
}

// Wrap classifies the errors of an already opened store.
func Wrap(s Store) Store {
	return &classified{Store: s}
}
