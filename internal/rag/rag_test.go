package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"

	"rag-chatbot/internal/apperror"
	"rag-chatbot/internal/chromemdb"
	"rag-chatbot/internal/config"
	"rag-chatbot/internal/embedding"
)

type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeCompleter) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

// countingStore records calls so tests can check which stages ran.
type countingStore struct {
	Store
	adds      atomic.Int64
	retrieves atomic.Int64
}

func (c *countingStore) Add(ctx context.Context, chunks []schema.Document) error {
	c.adds.Add(1)
	return c.Store.Add(ctx, chunks)
}

func (c *countingStore) Retrieve(ctx context.Context, query string, k int) ([]schema.Document, error) {
	c.retrieves.Add(1)
	return c.Store.Retrieve(ctx, query, k)
}

func ragConfig() *config.RAGConfig {
	return &config.RAGConfig{
		ChunkSize:    config.DefaultChunkSize,
		ChunkOverlap: config.DefaultChunkOverlap,
		TopK:         config.DefaultTopK,
	}
}

func newPipeline(t *testing.T, llm *fakeCompleter) (*Pipeline, *countingStore, *chromemdb.VectorDBManager) {
	t.Helper()
	m, err := chromemdb.NewVectorDBManager("", "docs", embedding.NewMockEmbedder(64), false, "")
	require.NoError(t, err)
	store := &countingStore{Store: m}
	return NewPipeline(store, llm, ragConfig()), store, m
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngest_UnsupportedExtension(t *testing.T) {
	p, store, m := newPipeline(t, &fakeCompleter{})
	path := writeFile(t, "data.csv", "a,b\n1,2\n")

	n, err := p.Ingest(context.Background(), path, "")
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, apperror.KindUnsupported, apperror.KindOf(err))
	assert.Contains(t, err.Error(), ".csv")
	assert.Zero(t, store.adds.Load())

	count, err := m.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngest_ReingestDuplicates(t *testing.T) {
	p, _, m := newPipeline(t, &fakeCompleter{})
	path := writeFile(t, "notes.txt", strings.Repeat("Go channels carry values between goroutines. ", 60))

	first, err := p.Ingest(context.Background(), path, "")
	require.NoError(t, err)
	assert.Greater(t, first, 1)

	second, err := p.Ingest(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	count, err := m.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first+second, count)
}

func TestIngest_LoadError(t *testing.T) {
	p, store, _ := newPipeline(t, &fakeCompleter{})
	_, err := p.Ingest(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), "")
	require.Error(t, err)
	assert.Equal(t, apperror.KindLoad, apperror.KindOf(err))
	assert.Zero(t, store.adds.Load())
}

func TestIngest_StoreError(t *testing.T) {
	emb := embedding.NewMockEmbedder(64)
	m, err := chromemdb.NewVectorDBManager("", "docs", emb, false, "")
	require.NoError(t, err)
	emb.FailWith(errors.New("embedding provider unavailable"))

	p := NewPipeline(m, &fakeCompleter{}, ragConfig())
	_, err = p.Ingest(context.Background(), writeFile(t, "a.md", "# Title\n\nbody text"), "")
	require.Error(t, err)
	assert.Equal(t, apperror.KindStore, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "embedding provider unavailable")
}

func TestAnswer_EmptyCollection(t *testing.T) {
	llm := &fakeCompleter{answer: "I don't know"}
	p, store, _ := newPipeline(t, llm)

	answer, err := p.Answer(context.Background(), "What is the capital of Atlantis?")
	require.NoError(t, err)
	assert.Equal(t, "I don't know", answer)
	assert.Equal(t, int64(1), store.retrieves.Load())
	require.Equal(t, 1, llm.calls())
	assert.Contains(t, llm.lastPrompt(), "Context:\n\n\nQuestion: What is the capital of Atlantis?")
}

func TestAnswer_UsesRetrievedContext(t *testing.T) {
	llm := &fakeCompleter{answer: "  Paris\n"}
	p, _, _ := newPipeline(t, llm)

	_, err := p.Ingest(context.Background(), writeFile(t, "france.txt", "The capital of France is Paris."), "")
	require.NoError(t, err)

	answer, err := p.Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", answer)

	prompt := llm.lastPrompt()
	assert.True(t, strings.HasPrefix(prompt, "Use the provided context to answer the question."))
	assert.Contains(t, prompt, `say "I don't know"`)
	assert.Contains(t, prompt, "The capital of France is Paris.")
	assert.True(t, strings.HasSuffix(prompt, "Question: What is the capital of France?"))
}

func TestAnswer_AtMostTopKChunks(t *testing.T) {
	llm := &fakeCompleter{answer: "ok"}
	p, _, m := newPipeline(t, llm)

	for i := 0; i < 6; i++ {
		path := writeFile(t, "doc.txt", "chunk number "+strings.Repeat("x", i+1))
		_, err := p.Ingest(context.Background(), path, "")
		require.NoError(t, err)
	}
	count, err := m.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, count)

	_, err = p.Answer(context.Background(), "chunk number")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTopK, strings.Count(llm.lastPrompt(), "chunk number "))
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	llm := &fakeCompleter{}
	p, store, _ := newPipeline(t, llm)

	_, err := p.Answer(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))
	assert.Zero(t, store.retrieves.Load())
	assert.Zero(t, llm.calls())
}

func TestAnswer_LLMError(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("401 unauthorized")}
	p, _, _ := newPipeline(t, llm)

	_, err := p.Answer(context.Background(), "hello?")
	require.Error(t, err)
	assert.Equal(t, apperror.KindLLM, apperror.KindOf(err))
	assert.Equal(t, "401 unauthorized", err.Error())
}

func TestAnswer_ConcurrentIdenticalQuestions(t *testing.T) {
	llm := &fakeCompleter{answer: "Paris"}
	p, store, _ := newPipeline(t, llm)
	_, err := p.Ingest(context.Background(), writeFile(t, "france.txt", "The capital of France is Paris."), "")
	require.NoError(t, err)

	const n = 5
	var wg sync.WaitGroup
	answers := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			answers[i], errs[i] = p.Answer(context.Background(), "What is the capital of France?")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "Paris", answers[i])
	}
	assert.Equal(t, int64(n), store.retrieves.Load())
	assert.Equal(t, n, llm.calls())
}

func TestAnswerPlain(t *testing.T) {
	llm := &fakeCompleter{answer: " raw model text "}
	p, store, _ := newPipeline(t, llm)

	answer, err := p.AnswerPlain(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, " raw model text ", answer)
	assert.Equal(t, "ping", llm.lastPrompt())
	assert.Zero(t, store.retrieves.Load())
}

func TestAnswerPlain_LLMError(t *testing.T) {
	p, _, _ := newPipeline(t, &fakeCompleter{err: errors.New("connection refused")})
	_, err := p.AnswerPlain(context.Background(), "ping")
	require.Error(t, err)
	assert.Equal(t, apperror.KindLLM, apperror.KindOf(err))
}

func TestFormatDocs(t *testing.T) {
	docs := []schema.Document{{PageContent: "one"}, {PageContent: "two"}}
	assert.Equal(t, "one\n\ntwo", FormatDocs(docs))
	assert.Equal(t, "", FormatDocs(nil))
}
