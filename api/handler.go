package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"github.com/evalIA/property-import-service/internal/ai"
	"github.com/evalIA/property-import-service/internal/auth"
	"github.com/evalIA/property-import-service/internal/config"
	"github.com/evalIA/property-import-service/internal/db"
	"github.com/evalIA/property-import-service/internal/models"
	"github.com/evalIA/property-import-service/internal/services"
	"github.com/evalIA/property-import-service/internal/storage"
)

const Version = "1.4.0"

// Handler handles HTTP requests for document imports
type Handler struct {
	config   *config.Config
	importer *services.Importer
	batches  *services.BatchCoordinator
}

// NewHandler creates a new API handler
func NewHandler(cfg *config.Config, importer *services.Importer, batches *services.BatchCoordinator) *Handler {
	return &Handler{
		config:   cfg,
		importer: importer,
		batches:  batches,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/api/login", auth.LoginHandler(h.config)).Methods("POST")

	router.HandleFunc("/api/document-types", h.ListDocumentTypes).Methods("GET")

	// Single-document imports
	router.HandleFunc("/api/imports", h.CreateImport).Methods("POST")
	router.HandleFunc("/api/imports", h.ListImports).Methods("GET")
	router.HandleFunc("/api/imports/{id}", h.GetImport).Methods("GET")
	router.HandleFunc("/api/imports/{id}", h.DeleteImport).Methods("DELETE")
	router.HandleFunc("/api/imports/{id}/extractions/{index:[0-9]+}", h.ResolveExtraction).Methods("PUT")
	router.HandleFunc("/api/imports/{id}/extractions/{index:[0-9]+}/complete", h.CompleteExtraction).Methods("POST")

	// Batches
	router.HandleFunc("/api/batches", h.StartBatch).Methods("POST")
	router.HandleFunc("/api/batches/current", h.GetBatchProgress).Methods("GET")
	router.HandleFunc("/api/batches/current", h.CancelBatch).Methods("DELETE")
	router.HandleFunc("/api/batches/current/report", h.GetBatchReport).Methods("GET")

	// Properties
	router.HandleFunc("/api/properties", h.ListProperties).Methods("GET")
	router.HandleFunc("/api/properties/{id}", h.GetProperty).Methods("GET")

	return router
}

// Routes returns the full middleware chain around the router
func (h *Handler) Routes() http.Handler {
	return RequestIDMiddleware(
		RecoveryMiddleware(
			LoggingMiddleware(
				auth.JWTMiddleware(h.SetupRoutes()),
			),
		),
	)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Runtime   RuntimeStats      `json:"runtime"`
	Sessions  int               `json:"sessions"`
	Database  ServiceStatus     `json:"database"`
	Storage   ServiceStatus     `json:"storage"`
	AI        map[string]string `json:"ai"`
}

// RuntimeStats is a snapshot of process memory and goroutines
type RuntimeStats struct {
	HeapMB     string `json:"heapMb"`
	SysMB      string `json:"sysMb"`
	Goroutines int    `json:"goroutines"`
}

// ServiceStatus is the state of one optional collaborator
type ServiceStatus struct {
	Available bool   `json:"available"`
	Backend   string `json:"backend,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

func megabytes(b uint64) string {
	return fmt.Sprintf("%.2f MB", float64(b)/(1<<20))
}

// Health reports dependency status. Database and storage are optional, so their
// absence never makes the service unhealthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Runtime: RuntimeStats{
			HeapMB:     megabytes(m.HeapAlloc),
			SysMB:      megabytes(m.Sys),
			Goroutines: runtime.NumGoroutine(),
		},
		Sessions: h.importer.Sessions().Len(),
		Database: h.checkDatabase(r.Context()),
		Storage:  h.checkStorage(),
		AI:       h.providerStatus(),
	}

	// no usable LLM key means every import would fail pre-flight
	if _, err := ai.ResolveCredentials(h.config.AI, nil, models.Credentials{}); err != nil {
		response.Status = "degraded"
	}

	h.sendJSON(w, http.StatusOK, response)
}

// checkDatabase pings Postgres; without a pool the in-memory store serves properties
func (h *Handler) checkDatabase(ctx context.Context) ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{Backend: "memory", Error: "database not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.Pool.Ping(ctx); err != nil {
		return ServiceStatus{Backend: "postgres", Error: err.Error()}
	}
	return ServiceStatus{Available: true, Backend: "postgres"}
}

func (h *Handler) checkStorage() ServiceStatus {
	if !storage.Enabled() {
		return ServiceStatus{Error: "storage not configured, documents are not archived"}
	}
	return ServiceStatus{Available: true, Backend: "minio:" + storage.BucketName}
}

func (h *Handler) providerStatus() map[string]string {
	status := map[string]string{
		"defaultProvider": h.config.AI.DefaultProvider,
	}
	for _, p := range ai.Profiles() {
		pc, _ := h.config.AI.Provider(p.Name)
		if pc.APIKey != "" {
			status[p.Name] = "configured"
		} else {
			status[p.Name] = "no key"
		}
	}
	return status
}

// currentUser returns the caller's claims and configured account (nil when the
// token's user is not in the config)
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*auth.Claims, *config.User, bool) {
	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return nil, nil, false
	}
	return claims, h.config.FindUserByID(claims.UserID), true
}

// resolveCredentials picks the LLM credentials for a request
func (h *Handler) resolveCredentials(user *config.User, provider, model string) (models.Credentials, error) {
	return ai.ResolveCredentials(h.config.AI, user, models.Credentials{Provider: provider, Model: model})
}

// writeServiceError maps pipeline errors onto HTTP statuses
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var credErr *ai.CredentialError
	switch {
	case errors.As(err, &credErr):
		h.sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnknownDocumentType), errors.Is(err, services.ErrInput):
		h.sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrBatchAlreadyRunning),
		errors.Is(err, services.ErrDuplicateCompletion),
		errors.Is(err, services.ErrActionUnresolved),
		errors.Is(err, services.ErrInvalidState):
		h.sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, db.ErrNotFound):
		h.sendError(w, http.StatusNotFound, err.Error())
	default:
		h.sendError(w, http.StatusInternalServerError, err.Error())
	}
}

// sendJSON writes a JSON body with the given status
func (h *Handler) sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
