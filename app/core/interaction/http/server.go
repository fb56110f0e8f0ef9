package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pagesmith/app/core/intake"
	"pagesmith/app/core/validate"
	"pagesmith/app/pkg/logger"
	"pagesmith/app/pkg/types"
)

const serviceName = "pagesmith - automated pages deployment"

// Server is the webhook-facing HTTP surface. It answers every request
// synchronously from the gate; pipeline work never holds a connection
// open.
type Server struct {
	port            int
	gate            *intake.Gate
	server          *http.Server
	shutdownTimeout time.Duration
}

func NewServer(port int, gate *intake.Gate) *Server {
	return &Server{
		port:            port,
		gate:            gate,
		shutdownTimeout: 5 * time.Second,
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/api-endpoint", s.handleTask)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error: %v", err)
		}
	}()

	logger.Info("HTTP listening on port %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "running",
		"service": serviceName,
	})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read request body")
		return
	}
	defer r.Body.Close()

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		logger.Error("Invalid JSON received [%s]: %v", requestID, err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	logger.Info("Received request [%s]: task=%v round=%v", requestID, raw["task"], raw["round"])

	outcome, err := s.gate.Accept(raw)
	if err != nil {
		var vErr *validate.Error
		switch {
		case errors.As(err, &vErr):
			logger.Info("Validation error [%s]: %s", requestID, vErr.Reason)
			writeError(w, http.StatusBadRequest, vErr.Reason)
		case errors.Is(err, intake.ErrBadSecret):
			writeError(w, http.StatusForbidden, "Invalid secret")
		default:
			logger.Error("Intake failure [%s]: %v", requestID, err)
			writeError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}

	resp := taskResponse{
		Status:         outcome.Status,
		Message:        outcome.Message,
		PreviousResult: outcome.PreviousResult,
	}
	writeJSON(w, http.StatusOK, resp)
}

type taskResponse struct {
	Status         string                 `json:"status"`
	Message        string                 `json:"message"`
	PreviousResult *types.PublishedResult `json:"previous_result,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
