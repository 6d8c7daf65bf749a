// Package server provides the HTTP API of the chatbot.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/config"
)

// Pipeline is the ingestion and query work behind the endpoints.
type Pipeline interface {
	Ingest(ctx context.Context, filePath, source string) (int, error)
	Answer(ctx context.Context, question string) (string, error)
	AnswerPlain(ctx context.Context, question string) (string, error)
}

// Collection reports on the persisted chunk collection.
type Collection interface {
	Name() string
	Count(ctx context.Context) (int, error)
}

// Server is the HTTP server for the chatbot API.
type Server struct {
	pipeline   Pipeline
	collection Collection
	config     *config.ServerConfig
	server     *http.Server
}

func NewServer(pipeline Pipeline, collection Collection, cfg *config.ServerConfig) *Server {
	s := &Server{
		pipeline:   pipeline,
		collection: collection,
		config:     cfg,
	}
	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the API handler with its middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(middleware.Recoverer)
	// any origin, echoed back so credentials are allowed
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(*http.Request, string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	r.Get("/", s.handleRoot)
	r.Post("/ingest", s.handleIngest)
	r.Post("/chat", s.handleChat)
	r.Post("/chat_plain", s.handleChatPlain)
	r.Get("/collection", s.handleCollection)
	return r
}

// Start starts the HTTP server and blocks until it stops. A stop through
// Stop is not an error.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server. After Stop, Start returns
// immediately.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
