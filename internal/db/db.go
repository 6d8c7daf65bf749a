package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/parser"
)

// Document is one stored chunk. The table name is the collection name, set
// per query with ModelTableExpr.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string            `bun:"id,pk"`
	Content       string            `bun:"content,notnull"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
	Embedding     pgvector.Vector   `bun:"embedding,type:vector"`
	Score         float64           `bun:"score,scanonly"`
}

// Store keeps one collection in a Postgres table with a pgvector column.
type Store struct {
	db         *bun.DB
	embedder   embeddings.Embedder
	table      string
	dimensions int
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// NewStore connects to dsn and makes sure the collection table exists.
func NewStore(ctx context.Context, dsn, collection string, dimensions int, embedder embeddings.Embedder, debug bool) (*Store, error) {
	db := NewDB(ConnectDB(dsn), debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := &Store{db: db, embedder: embedder, table: collection, dimensions: dimensions}
	if err := s.InitDB(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS ? (id text PRIMARY KEY, content text NOT NULL, metadata jsonb, embedding vector(?) NOT NULL)",
		bun.Ident(s.table), s.dimensions)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Name() string { return s.table }

func (s *Store) Add(ctx context.Context, chunks []schema.Document) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.PageContent
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		docs[i] = Document{
			ID:        id,
			Content:   c.PageContent,
			Metadata:  parser.StringMetadata(c.Metadata),
			Embedding: pgvector.NewVector(vectors[i]),
		}
	}
	return s.StoreDocuments(ctx, docs)
}

// StoreDocuments inserts all documents in one transaction.
func (s *Store) StoreDocuments(ctx context.Context, docs []Document) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&docs).
			ModelTableExpr("?", bun.Ident(s.table)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	log.Debug().Str("table", s.table).Int("added", len(docs)).Msg("Stored documents")
	return nil
}

// Retrieve returns the k chunks closest to query by cosine distance.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]schema.Document, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	rows, err := s.SearchDocuments(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	docs := make([]schema.Document, len(rows))
	for i, r := range rows {
		meta := make(map[string]any, len(r.Metadata))
		for key, val := range r.Metadata {
			meta[key] = val
		}
		docs[i] = schema.Document{PageContent: r.Content, Metadata: meta, Score: float32(r.Score)}
	}
	return docs, nil
}

func (s *Store) SearchDocuments(ctx context.Context, queryEmbedding []float32, limit int) ([]Document, error) {
	vec := pgvector.NewVector(queryEmbedding)
	var docs []Document
	err := s.db.NewSelect().
		Model(&docs).
		ModelTableExpr("? AS d", bun.Ident(s.table)).
		ColumnExpr("d.id, d.content, d.metadata").
		ColumnExpr("1 - (d.embedding <=> ?) AS score", vec).
		OrderExpr("d.embedding <=> ?", vec).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().
		Model((*Document)(nil)).
		ModelTableExpr("? AS d", bun.Ident(s.table)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// drop the collection table
func (s *Store) DropDocuments(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS ?", bun.Ident(s.table))
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
