package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/hlog"

	"rag-chatbot/internal/apperror"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/parser"
)

const uploadField = "upload"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, models.StatusResponse{Status: "ok", Message: "RAG API is running."})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.config.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, http.StatusRequestEntityTooLarge,
				apperror.Newf(apperror.KindInvalidInput, "ingest", "upload exceeds %d MB", s.config.MaxUploadMB), "")
			return
		}
		s.fail(w, r, apperror.New(apperror.KindInvalidInput, "ingest", err), "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		s.fail(w, r, apperror.Newf(apperror.KindInvalidInput, "ingest", "missing file field %q", uploadField), "")
		return
	}
	defer file.Close()

	ext := parser.Ext(header.Filename)
	if err := parser.CheckSupported(ext); err != nil {
		s.fail(w, r, err, "")
		return
	}

	path, err := s.stage(file, ext)
	if err != nil {
		s.fail(w, r, apperror.New(apperror.KindUnknown, "stage", err), "")
		return
	}
	defer os.Remove(path)

	n, err := s.pipeline.Ingest(r.Context(), path, filepath.Base(header.Filename))
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, models.IngestResponse{Status: "ok", ChunksIndexed: n})
}

// stage copies an upload to a temp file keeping its extension. The caller
// removes the file; on error nothing is left behind.
func (s *Server) stage(src io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp(s.config.UploadDir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r, "")
	if !ok {
		return
	}
	answer, err := s.pipeline.Answer(r.Context(), req.Question)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, models.ChatResponse{Answer: answer})
}

// handleChatPlain skips retrieval, to tell model problems apart from
// retrieval problems.
func (s *Server) handleChatPlain(w http.ResponseWriter, r *http.Request) {
	const prefix = "chat_plain error: "
	req, ok := s.decodeChat(w, r, prefix)
	if !ok {
		return
	}
	answer, err := s.pipeline.AnswerPlain(r.Context(), req.Question)
	if err != nil {
		s.fail(w, r, err, prefix)
		return
	}
	s.respondJSON(w, http.StatusOK, models.ChatResponse{Answer: answer})
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	n, err := s.collection.Count(r.Context())
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, models.CollectionResponse{Collection: s.collection.Name(), Chunks: n})
}

func (s *Server) decodeChat(w http.ResponseWriter, r *http.Request, prefix string) (models.ChatRequest, bool) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, apperror.Newf(apperror.KindInvalidInput, "decode", "invalid request body"), prefix)
		return req, false
	}
	return req, true
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindUnsupported, apperror.KindInvalidInput:
		return http.StatusBadRequest
	case apperror.KindLoad:
		return http.StatusUnprocessableEntity
	case apperror.KindStore, apperror.KindLLM:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, prefix string) {
	s.respondError(w, r, statusFor(apperror.KindOf(err)), err, prefix)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError logs the failure once and writes the error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, err error, prefix string) {
	kind := apperror.KindOf(err)
	hlog.FromRequest(r).Error().Err(err).
		Str("path", r.URL.Path).
		Str("kind", string(kind)).
		Str("op", apperror.OpOf(err)).
		Int("status", status).
		Msg("Request failed")
	s.respondJSON(w, status, models.ErrorResponse{Detail: prefix + err.Error(), Kind: string(kind)})
}
