// Package web serves the study API over HTTP.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/yuin/goldmark"

	"github.com/conorfennell/kindlenotes/internal/domain"
	"github.com/conorfennell/kindlenotes/internal/study"
	"github.com/conorfennell/kindlenotes/internal/sync"
)

// Syncer runs an import. It is optional: without one POST /sync answers 404.
type Syncer interface {
	Run(ctx context.Context) (sync.Report, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	router   chi.Router
	study    *study.Service
	syncer   Syncer
	logger   *slog.Logger
	markdown goldmark.Markdown
	validate *validator.Validate
}

// NewServer creates and configures a new server. syncer may be nil.
func NewServer(svc *study.Service, syncer Syncer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:   chi.NewRouter(),
		study:    svc,
		syncer:   syncer,
		logger:   logger,
		markdown: goldmark.New(),
		validate: validator.New(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/books", s.handleGetBooks)
	s.router.Post("/sync", s.handlePostSync)
	s.router.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleNewSession)
		r.Get("/{id}", s.handleGetSession)
		r.Post("/{id}/next", s.handleNextFlashcard)
		r.Post("/{id}/results", s.handleSaveResult)
		r.Post("/{id}/cancel", s.handleCancel)
	})
}

type newSessionRequest struct {
	BookID string `json:"bookId"`
}

type resultRequest struct {
	Hash  string `json:"hash" validate:"required"`
	Grade *int   `json:"grade" validate:"required"`
}

// flashcardResponse adds rendered HTML to the card view.
type flashcardResponse struct {
	study.FlashcardView
	ContentHTML  string `json:"contentHtml"`
	BacksideHTML string `json:"backsideHtml,omitempty"`
}

type syncResponse struct {
	Books     int      `json:"books"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Errors    []string `json:"errors,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGetBooks(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.study.Summaries(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var req newSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}
	session, err := s.study.NewSession(r.Context(), req.BookID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.study.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleNextFlashcard(w http.ResponseWriter, r *http.Request) {
	view, err := s.study.NextFlashcard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp := flashcardResponse{FlashcardView: view}
	if resp.ContentHTML, err = s.render(view.Flashcard.Content); err == nil && view.Flashcard.Backside != "" {
		resp.BacksideHTML, err = s.render(view.Flashcard.Backside)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSaveResult(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "hash and grade are required"})
		return
	}
	session, err := s.study.SaveResult(r.Context(), chi.URLParam(r, "id"), req.Hash, *req.Grade)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.study.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		s.respondJSON(w, http.StatusNotFound, errorResponse{Error: "no import source configured"})
		return
	}
	report, err := s.syncer.Run(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp := syncResponse{
		Books:     report.Books,
		Created:   report.Created,
		Updated:   report.Updated,
		Unchanged: report.Unchanged,
	}
	for _, e := range report.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) render(src string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// statusOf maps domain errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrBookNotFound),
		errors.Is(err, domain.ErrFlashcardNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrSessionExhausted),
		errors.Is(err, domain.ErrNoEligibleBook),
		errors.Is(err, domain.ErrNoEligibleFlashcards):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidGrade),
		errors.Is(err, domain.ErrUnknownFlashcard):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	} else {
		s.logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	s.respondJSON(w, status, errorResponse{Error: msg})
}
