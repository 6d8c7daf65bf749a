package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"rag-chatbot/internal/apiclient"
	"rag-chatbot/internal/chatui"
	"rag-chatbot/internal/config"
	"rag-chatbot/internal/embedding"
	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/llmservice"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/rag"
	"rag-chatbot/internal/server"
	"rag-chatbot/internal/vectorstore"
)

// appContext holds what the backend commands share.
type appContext struct {
	cfg       *config.Config
	store     vectorstore.Store
	pipeline  *rag.Pipeline
	logCloser io.Closer
}

func (a *appContext) Close() {
	// the pgvector store holds a connection pool
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close vector store")
		}
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("env"), cmd.String("config"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newAppContext loads the config, sets up logging and opens the store and
// pipelines.
func newAppContext(ctx context.Context, cmd *cli.Command) (*appContext, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	closer, err := helper.InitLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &appContext{cfg: cfg, logCloser: closer}
	if err := cfg.Validate(); err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log.Debug().Str("vector_store", cfg.VectorStore.Type).Str("model", cfg.InferLLM.Model).Msg("Loaded config")

	embedder, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store, err = vectorstore.Connect(ctx, cfg, embedder)
	if err != nil {
		a.Close()
		return nil, err
	}
	llm, err := llmservice.New(&cfg.InferLLM)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = rag.NewPipeline(a.store, llm, &cfg.RAG)
	return a, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.NewServer(a.pipeline, a.store, &a.cfg.Server)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func ingestAction(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one file is required")
	}
	a, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range paths {
		n, err := a.pipeline.Ingest(ctx, path, "")
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("Indexed %d chunks from %s\n", n, path)
	}
	return nil
}

func askAction(ctx context.Context, cmd *cli.Command) error {
	question := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return errors.New("a question is required")
	}
	a, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var answer string
	if cmd.Bool("plain") {
		answer, err = a.pipeline.AnswerPlain(ctx, question)
	} else {
		answer, err = a.pipeline.Answer(ctx, question)
	}
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

// chatAction runs the TUI. It only needs the API URL; logs go to a file so
// they do not draw over the terminal.
func chatAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Log.File == "" {
		cfg.Log.File = chatLogFile
	}
	closer, err := helper.InitLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	client := apiclient.New(cfg.UI.APIURL)
	if _, err := client.Health(ctx); err != nil {
		log.Warn().Err(err).Str("api_url", cfg.UI.APIURL).Msg("Backend is not reachable yet")
	}
	_, err = tea.NewProgram(chatui.New(client, cfg.UI.MaxHistory), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func statsAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.Count(ctx)
	if err != nil {
		return err
	}
	helper.PrettyPrint(os.Stdout, models.CollectionResponse{Collection: a.store.Name(), Chunks: n})
	return nil
}

func exportAction(ctx context.Context, cmd *cli.Command) error {
	return portAction(ctx, cmd, func(p vectorstore.Porter, path string) error {
		return p.Export(ctx, path)
	})
}

func importAction(ctx context.Context, cmd *cli.Command) error {
	return portAction(ctx, cmd, func(p vectorstore.Porter, path string) error {
		return p.Import(ctx, path)
	})
}

func portAction(ctx context.Context, cmd *cli.Command, run func(vectorstore.Porter, string) error) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("a file path is required")
	}
	a, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, ok := a.store.(vectorstore.Porter)
	if !ok {
		return fmt.Errorf("%s store does not support export and import", a.cfg.VectorStore.Type)
	}
	if err := run(p, path); err != nil {
		return err
	}
	n, err := a.store.Count(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("file", path).Str("collection", a.store.Name()).Int("chunks", n).Msg("Done")
	return nil
}
