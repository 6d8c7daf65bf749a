package rag

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"rag-chatbot/internal/apperror"
	"rag-chatbot/internal/config"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/parser"
)

// Retriever returns the chunks most relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]schema.Document, error)
}

// Indexer persists chunks.
type Indexer interface {
	Add(ctx context.Context, chunks []schema.Document) error
}

// Store is what the pipelines need from the vector store.
type Store interface {
	Retriever
	Indexer
}

// PromptRenderer builds the model prompt from the retrieved context and the
// question.
type PromptRenderer interface {
	Render(contextText, question string) (string, error)
}

// Completer sends a prompt to a chat model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ResponseParser turns the raw completion into the answer.
type ResponseParser interface {
	Parse(completion string) string
}

// Pipeline runs ingestion and question answering over one store.
type Pipeline struct {
	store    Store
	renderer PromptRenderer
	llm      Completer
	parser   ResponseParser
	cfg      *config.RAGConfig
}

// NewPipeline wires the pipelines with the fixed answer prompt and the plain
// string parser.
func NewPipeline(store Store, llm Completer, cfg *config.RAGConfig) *Pipeline {
	return &Pipeline{
		store:    store,
		renderer: NewTemplateRenderer(models.AnswerPromptTemplate),
		llm:      llm,
		parser:   StringParser{},
		cfg:      cfg,
	}
}

// Ingest loads filePath, splits it into chunks, stores them and returns the
// number of chunks. source names the document in chunk metadata; empty means
// the file's base name. Ingesting the same file twice stores its chunks twice.
func (p *Pipeline) Ingest(ctx context.Context, filePath, source string) (int, error) {
	docs, err := parser.Load(ctx, filePath, source)
	if err != nil {
		return 0, err
	}
	chunks, err := parser.Split(docs, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		return 0, err
	}
	if err := p.store.Add(ctx, chunks); err != nil {
		return 0, classify(apperror.KindStore, "add", err)
	}
	log.Info().Str("file", filePath).Int("documents", len(docs)).Int("chunks", len(chunks)).Msg("Ingested file")
	return len(chunks), nil
}

// Answer answers question from the top-k retrieved chunks. With no matching
// chunks the model still runs with an empty context and is expected to
// reply "I don't know".
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", apperror.Newf(apperror.KindInvalidInput, "answer", "question must not be empty")
	}

	docs, err := p.store.Retrieve(ctx, question, p.cfg.TopK)
	if err != nil {
		return "", classify(apperror.KindStore, "retrieve", err)
	}

	prompt, err := p.renderer.Render(FormatDocs(docs), question)
	if err != nil {
		return "", apperror.New(apperror.KindUnknown, "render", err)
	}

	completion, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		return "", apperror.New(apperror.KindLLM, "complete", err)
	}
	log.Debug().Int("retrieved", len(docs)).Str("question", question).Msg("Answered question")
	return p.parser.Parse(completion), nil
}

// AnswerPlain sends question to the model as-is, without retrieval. It tells
// model connectivity problems apart from retrieval problems.
func (p *Pipeline) AnswerPlain(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", apperror.Newf(apperror.KindInvalidInput, "answer_plain", "question must not be empty")
	}
	completion, err := p.llm.Complete(ctx, question)
	if err != nil {
		return "", apperror.New(apperror.KindLLM, "complete", err)
	}
	return completion, nil
}

// FormatDocs joins chunk texts with a blank line.
func FormatDocs(docs []schema.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.PageContent
	}
	return strings.Join(parts, models.ContextSeparator)
}

// classify keeps an existing classification and applies kind otherwise.
func classify(kind apperror.Kind, op string, err error) error {
	if apperror.KindOf(err) != apperror.KindUnknown {
		return err
	}
	return apperror.New(kind, op, err)
}

// TemplateRenderer renders a langchaingo prompt template with the
// "context" and "question" variables.
type TemplateRenderer struct {
	tmpl prompts.PromptTemplate
}

func NewTemplateRenderer(template string) TemplateRenderer {
	return TemplateRenderer{tmpl: prompts.NewPromptTemplate(template, []string{"context", "question"})}
}

func (t TemplateRenderer) Render(contextText, question string) (string, error) {
	return t.tmpl.Format(map[string]any{
		"context":  contextText,
		"question": question,
	})
}

// StringParser returns the completion with surrounding whitespace removed.
type StringParser struct{}

func (StringParser) Parse(completion string) string {
	return strings.TrimSpace(completion)
}
