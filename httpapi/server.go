// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package httpapi exposes the orchestrator over HTTP.
//
// It serves two audiences: clients manage documents and run queries,
// and workers deliver status callbacks on the /worker endpoints. Live
// status events stream to clients over a WebSocket bridged to the
// status relay.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/docuverse/core"
	"github.com/poiesic/docuverse/orchestrator"
	"github.com/poiesic/docuverse/search"
	"github.com/poiesic/docuverse/storage"
)

// Server handles the HTTP surface of the orchestrator process.
type Server struct {
	service  *orchestrator.Service
	searcher *search.Searcher
	logger   *slog.Logger
	mux      *http.ServeMux
	httpSrv  *http.Server
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithSearcher enables the /query endpoint.
func WithSearcher(searcher *search.Searcher) Option {
	return func(s *Server) error {
		s.searcher = searcher
		return nil
	}
}

// NewServer creates the HTTP server around an orchestrator service.
func NewServer(service *orchestrator.Service, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, errors.New("orchestrator service is required")
	}

	s := &Server{
		service: service,
		logger:  slog.Default(),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("GET /documents", s.handleListDocuments)
	s.mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	s.mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	s.mux.HandleFunc("GET /documents/{id}/task", s.handleGetDocumentTask)
	s.mux.HandleFunc("POST /query", s.handleQuery)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.mux.HandleFunc("POST /worker/ack", s.handleWorkerAck)
	s.mux.HandleFunc("POST /worker/progress", s.handleWorkerProgress)
	s.mux.HandleFunc("POST /worker/completion", s.handleWorkerCompletion)
	s.mux.HandleFunc("POST /worker/failure", s.handleWorkerFailure)
}

// Handler returns the root handler, with request logging attached.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()
	s.logger.Info("http server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "err", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// errBadRequest marks malformed client input.
var errBadRequest = errors.New("bad request")

// respondError maps domain errors to HTTP status codes.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrTaskConflict):
		status = http.StatusConflict
	case errors.Is(err, core.ErrUnsupportedFileType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, orchestrator.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, orchestrator.ErrEmptyFile),
		errors.Is(err, core.ErrEmptyFilename),
		errors.Is(err, core.ErrEmptyDocumentId),
		errors.Is(err, core.ErrInvalidProgress),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, search.ErrEmptyQuery):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.respondJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
