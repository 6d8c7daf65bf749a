package chromemdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"

	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/parser"
)

// VectorDBManager keeps one chromem-go collection of a persistent database.
// Every AddDocuments call on a persistent DB is written to disk before it
// returns, so there is no separate flush step.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	embedder      embeddings.Embedder
	dbPath        string
	compress      bool
	encryptionKey string
}

// NewVectorDBManager opens (or creates) the persistent database at dbPath and
// the named collection inside it. An empty dbPath keeps everything in memory.
func NewVectorDBManager(dbPath, collectionName string, embedder embeddings.Embedder, compress bool, encryptionKey string) (*VectorDBManager, error) {
	var db *chromem.DB
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		embedder:      embedder,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
	}
	if _, err := m.GetOrCreateCollection(collectionName); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, m.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

func (m *VectorDBManager) embedFunc(ctx context.Context, text string) ([]float32, error) {
	return m.embedder.EmbedQuery(ctx, text)
}

func (m *VectorDBManager) Name() string {
	return m.collection.Name
}

// Add embeds the chunks in one batch and writes them to the collection.
func (m *VectorDBManager) Add(ctx context.Context, chunks []schema.Document) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.PageContent
	}
	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   c.PageContent,
			Metadata:  parser.StringMetadata(c.Metadata),
			Embedding: vectors[i],
		}
	}
	return m.CreateDocs(ctx, docs)
}

// add multiple documents
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Str("collection", m.collection.Name).Int("added", len(documents)).Int("total", m.collection.Count()).Msg("Added documents")
	return nil
}

// Retrieve returns up to k chunks most similar to query, best match first.
// An empty collection yields no chunks and no error.
func (m *VectorDBManager) Retrieve(ctx context.Context, query string, k int) ([]schema.Document, error) {
	// chromem-go rejects a k larger than the collection
	k = min(k, m.collection.Count())
	if k <= 0 {
		return nil, nil
	}
	vec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := m.SearchWithQueryOptions(ctx, chromem.QueryOptions{QueryEmbedding: vec, NResults: k})
	if err != nil {
		return nil, err
	}

	docs := make([]schema.Document, len(results))
	for i, r := range results {
		meta := make(map[string]any, len(r.Metadata))
		for key, val := range r.Metadata {
			meta[key] = val
		}
		docs[i] = schema.Document{PageContent: r.Content, Metadata: meta, Score: r.Similarity}
	}
	return docs, nil
}

// Read retrieves documents by similarity
func (m *VectorDBManager) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	// exit if query or embedding is not provided
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}

	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

func (m *VectorDBManager) Count(_ context.Context) (int, error) {
	return m.collection.Count(), nil
}

// Export writes the collection to filePath, gzip-compressed when the manager
// compresses and AES-GCM encrypted when an encryption key is configured.
func (m *VectorDBManager) Export(_ context.Context, filePath string) error {
	log.Debug().Str("collection", m.collection.Name).Str("file", filePath).Bool("compress", m.compress).Msg("Exporting collection")
	err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import replaces the whole collection with the one in a file written by
// Export. Documents added after the export are gone afterwards, in memory and
// on disk.
func (m *VectorDBManager) Import(_ context.Context, filePath string) error {
	name := m.collection.Name
	// read the file once into a scratch DB so a bad file or key leaves the
	// current collection untouched
	if err := chromem.NewDB().ImportFromFile(filePath, m.encryptionKey, name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	// ImportFromFile does not remove the old collection's document files
	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	if err := m.db.ImportFromFile(filePath, m.encryptionKey, name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	// the import swaps in a new collection object
	if _, err := m.GetOrCreateCollection(name); err != nil {
		return err
	}
	log.Debug().Str("collection", name).Str("file", filePath).Int("total", m.collection.Count()).Msg("Imported collection")
	return nil
}
