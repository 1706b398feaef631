// Package rest adapts the gateway core to the JSON-over-HTTP API.
package rest

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gridgate/gridgate/internal/apperrors"
	"github.com/gridgate/gridgate/internal/dispatch"
	"github.com/gridgate/gridgate/internal/jsoncodec"
	"github.com/gridgate/gridgate/internal/logging"
	"github.com/gridgate/gridgate/internal/store"
)

// apiResponse is the REST envelope: data is null on failure, the message
// describes the outcome in either case.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// Server serves the grid CRUD routes and the health probe.
type Server struct {
	core    dispatch.Core
	logger  logging.ServiceLogger
	limiter *clientLimiter
}

// Options tunes the REST adapter.
type Options struct {
	// RateLimitRPS/Burst bound per-client request rates; zero disables.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewServer binds the REST adapter to the core dispatcher.
func NewServer(d *dispatch.Dispatcher, logger logging.ServiceLogger, opts Options) *Server {
	return &Server{
		core:    d.Protocol("rest"),
		logger:  logger.With(logging.LogFields{"adapter": "rest"}),
		limiter: newClientLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
	}
}

// Handler builds the chi router with CORS, rate limiting, and panic recovery.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Use(corsMiddleware)
	r.Use(s.limiter.middleware)

	r.Get("/health", s.handleHealth)

	r.Route("/grid", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Put("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDelete)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.core.Health(r.Context()))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	items := s.core.ListGridItems(r.Context())
	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    items,
		Message: "Successfully retrieved grid item list",
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	item, err := s.core.GetGridItem(r.Context(), id)
	if err != nil {
		// Lookup misses keep a 200 with a false success flag; only writes
		// surface a 404.
		s.writeJSON(w, http.StatusOK, apiResponse{
			Success: false,
			Data:    nil,
			Message: apperrors.MessageOf(err),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    item,
		Message: "Successfully retrieved grid item",
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var fields store.CreateGridItem
	if err := jsoncodec.Decode(r.Body, &fields); err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.CodeValidation, err))
		return
	}

	item, err := s.core.CreateGridItem(r.Context(), fields)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, apiResponse{
		Success: true,
		Data:    item,
		Message: "Successfully created grid item",
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var patch store.UpdateGridItem
	if err := jsoncodec.Decode(r.Body, &patch); err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.CodeValidation, err))
		return
	}

	item, err := s.core.UpdateGridItem(r.Context(), id, patch)
	if err != nil {
		s.writeJSON(w, apperrors.HTTPStatus(apperrors.CodeOf(err)), apiResponse{
			Success: false,
			Data:    nil,
			Message: apperrors.MessageOf(err),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    item,
		Message: "Successfully updated grid item",
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.core.DeleteGridItem(r.Context(), id); err != nil {
		s.writeJSON(w, http.StatusOK, apiResponse{
			Success: false,
			Data:    nil,
			Message: apperrors.MessageOf(err),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    nil,
		Message: "Successfully deleted grid item",
	})
}

// pathID parses the {id} route parameter, answering 400 on garbage.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.CodeValidation, err))
		return 0, false
	}
	return id, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	s.writeJSON(w, apperrors.HTTPStatus(code), apiResponse{
		Success: false,
		Data:    nil,
		Message: apperrors.MessageOf(err),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsoncodec.Encode(w, body); err != nil {
		s.logger.Error("Failed to encode response", err, nil)
	}
}

// recoverer keeps a panicking handler from taking the process down; the
// request gets an internal error and the server keeps serving.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Handler panicked", nil, logging.LogFields{
					"panic": rec,
					"path":  r.URL.Path,
				})
				s.writeError(w, apperrors.New(apperrors.CodeInternal))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware mirrors the permissive CORS policy of the upstream API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
