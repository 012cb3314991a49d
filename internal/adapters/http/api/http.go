// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/breedid/internal/app"
	"github.com/okian/breedid/internal/domain/catalog"
	"github.com/okian/breedid/internal/domain/identify"
	"github.com/okian/breedid/internal/domain/model"
	"github.com/okian/breedid/internal/domain/types"
)

// CatalogDependencies are the read operations over the breed catalog.
type CatalogDependencies interface {
	Search(ctx context.Context, term, use string) types.BreedList
	Uses(ctx context.Context) []string
	Breed(ctx context.Context, id string) (catalog.BreedRecord, error)
}

// SessionDependencies drive identification sessions.
type SessionDependencies interface {
	CreateSession(ctx context.Context) (types.SessionView, error)
	Session(ctx context.Context, id string) (types.SessionView, error)
	SubmitImage(ctx context.Context, id string, img model.Image, src model.Source) (types.SubmitResult, error)
	Identify(ctx context.Context, id string, wait bool) (types.IdentifyResult, error)
	Preview(ctx context.Context, id, ref string) ([]byte, string, error)
	RemoveImage(ctx context.Context, id string) (types.SessionView, error)
	Reset(ctx context.Context, id string) (types.SessionView, error)
	DeleteSession(ctx context.Context, id string) error
	Report(ctx context.Context, id string) (string, error)
	MaxUploadBytes() int64
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CatalogDependencies
	SessionDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	breedsHandler  *BreedsHandler
	sessionHandler *SessionHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		breedsHandler:  NewBreedsHandler(deps),
		sessionHandler: NewSessionHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /breeds", MetricsMiddleware(s.breedsHandler.HandleSearch, "breeds"))
	mux.HandleFunc("GET /breeds/uses", MetricsMiddleware(s.breedsHandler.HandleUses, "breeds_uses"))
	mux.HandleFunc("GET /breeds/{id}", MetricsMiddleware(s.breedsHandler.HandleGet, "breed"))

	h := s.sessionHandler
	mux.HandleFunc("POST /sessions", MetricsMiddleware(h.HandleCreate, "sessions"))
	mux.HandleFunc("GET /sessions/{id}", MetricsMiddleware(h.HandleGet, "session"))
	mux.HandleFunc("DELETE /sessions/{id}", MetricsMiddleware(h.HandleDelete, "session"))
	mux.HandleFunc("PUT /sessions/{id}/image", MetricsMiddleware(h.HandleUpload, "session_image"))
	mux.HandleFunc("DELETE /sessions/{id}/image", MetricsMiddleware(h.HandleRemoveImage, "session_image"))
	mux.HandleFunc("GET /sessions/{id}/preview/{ref}", MetricsMiddleware(h.HandlePreview, "session_preview"))
	mux.HandleFunc("POST /sessions/{id}/identify", MetricsMiddleware(h.HandleIdentify, "session_identify"))
	mux.HandleFunc("POST /sessions/{id}/reset", MetricsMiddleware(h.HandleReset, "session_reset"))
	mux.HandleFunc("GET /sessions/{id}/report", MetricsMiddleware(h.HandleReport, "session_report"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps upstream error kinds to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrPreviewNotFound),
		errors.Is(err, catalog.ErrBreedNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, identify.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", err)
	case errors.Is(err, service.ErrNoResults):
		writeError(w, http.StatusConflict, "no_results", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrMissingFile), errors.Is(err, ErrBadSource):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
