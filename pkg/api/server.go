/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api exposes the node monitoring operations over HTTP.
package api

//go:generate mockgen -destination=mock_api.go -package=api github.com/carverauto/ssm/pkg/api NodeService

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
	"github.com/carverauto/ssm/pkg/service"
)

const (
	headerUserID = "X-User-ID"
	headerAPIKey = "X-API-Key"

	maxBodyBytes = 1 << 20

	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 5 * time.Minute
	defaultIdleTimeout  = 60 * time.Second
	shutdownTimeout     = 15 * time.Second
)

var errNoResult = errors.New("cycle returned no result")

// NodeService is implemented by *service.Service.
type NodeService interface {
	SyncConfig(ctx context.Context, nodeID, userID string, req *service.SyncRequest) (int64, error)
	ClearConfig(ctx context.Context, nodeID, userID, canvasID string) error
	RunNow(ctx context.Context, nodeID, userID string) (*models.PollResult, error)
	Status(ctx context.Context, nodeID, userID string) (*service.NodeStatus, error)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// SyncResponse is returned by a successful sync.
type SyncResponse struct {
	Success bool  `json:"success"`
	Version int64 `json:"version"`
}

// SuccessResponse is returned by a successful clear.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// Server routes HTTP requests to a NodeService.
type Server struct {
	svc    NodeService
	router *mux.Router
	apiKey string
	schema *jsonschema.Schema
	logger logger.Logger
}

// NewServer builds the router. An empty apiKey disables the key check.
func NewServer(svc NodeService, apiKey string, log logger.Logger) (*Server, error) {
	schema, err := compileSyncSchema()
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:    svc,
		router: mux.NewRouter(),
		apiKey: apiKey,
		schema: schema,
		logger: log,
	}

	s.setupRoutes()

	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP API")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	nodes := s.router.PathPrefix("/api/nodes/{nodeId}/ssm").Subrouter()
	nodes.Use(s.authenticationMiddleware)

	nodes.HandleFunc("/config", s.handleSyncConfig).Methods(http.MethodPost)
	nodes.HandleFunc("/config", s.handleClearConfig).Methods(http.MethodDelete)
	nodes.HandleFunc("/run", s.handleRunNow).Methods(http.MethodPost)
	nodes.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
}

type userKey struct{}

// authenticationMiddleware checks the shared API key and requires the
// caller identity forwarded by the web layer.
func (s *Server) authenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(headerAPIKey)), []byte(s.apiKey)) != 1 {
			writeError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		userID := r.Header.Get(headerUserID)
		if userID == "" {
			writeError(w, "missing "+headerUserID, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

func userFrom(r *http.Request) string {
	userID, _ := r.Context().Value(userKey{}).(string)

	return userID
}

func (*Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSyncConfig(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["nodeId"]

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "request body too large or unreadable", http.StatusBadRequest)
		return
	}

	if err := validateBody(s.schema, body); err != nil {
		s.fail(w, nodeID, "sync", err)
		return
	}

	var req service.SyncRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.fail(w, nodeID, "sync", &models.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}

	version, err := s.svc.SyncConfig(r.Context(), nodeID, userFrom(r), &req)
	if err != nil {
		s.fail(w, nodeID, "sync", err)
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{Success: true, Version: version})
}

func (s *Server) handleClearConfig(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["nodeId"]

	canvasID := r.URL.Query().Get("canvas_id")
	if canvasID == "" {
		s.fail(w, nodeID, "clear", &models.ValidationError{Field: "canvas_id", Reason: "required"})
		return
	}

	if err := s.svc.ClearConfig(r.Context(), nodeID, userFrom(r), canvasID); err != nil {
		s.fail(w, nodeID, "clear", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["nodeId"]

	result, err := s.svc.RunNow(r.Context(), nodeID, userFrom(r))

	switch {
	case result != nil:
		// The cycle ran and ended aborted; the result carries the outcome.
		if err != nil {
			s.logger.Warn().Str("node_id", nodeID).Str("state", string(result.State)).
				Str("error_class", models.ErrorClass(err)).Msg("Manual cycle aborted")
		}

		writeJSON(w, http.StatusOK, result)
	case err != nil:
		s.fail(w, nodeID, "run", err)
	default:
		s.fail(w, nodeID, "run", errNoResult)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["nodeId"]

	status, err := s.svc.Status(r.Context(), nodeID, userFrom(r))
	if err != nil {
		s.fail(w, nodeID, "status", err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) fail(w http.ResponseWriter, nodeID, op string, err error) {
	status := statusFor(err)

	event := s.logger.Debug()
	if status >= http.StatusInternalServerError {
		event = s.logger.Error()
	}

	event.Str("node_id", nodeID).Str("op", op).Str("error_class", models.ErrorClass(err)).Int("status", status).Msg("Request failed")

	writeError(w, messageFor(err, status), status)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrOwnership):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrVersionConflict),
		errors.Is(err, models.ErrCycleInProgress),
		errors.Is(err, models.ErrNotConfigured):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error, status int) string {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}

	var verrs models.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs.Error()
	}

	if status >= http.StatusInternalServerError {
		return "internal error"
	}

	return models.ErrorClass(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errResponse := ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
