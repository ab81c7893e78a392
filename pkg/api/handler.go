// Package api provides the REST endpoints for querying, schema
// evolution and column merges.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tabletalk/tabletalk/pkg/audit"
	"github.com/tabletalk/tabletalk/pkg/health"
	"github.com/tabletalk/tabletalk/pkg/merge"
	"github.com/tabletalk/tabletalk/pkg/nlquery"
	"github.com/tabletalk/tabletalk/pkg/schema"
)

// QueryService answers natural-language query requests.
type QueryService interface {
	Query(ctx context.Context, req nlquery.Request) (*nlquery.Result, error)
}

// SchemaService identifies and evolves global schemas.
type SchemaService interface {
	Identify(ctx context.Context, schemaID string, fileColumns []schema.FileColumn) (*schema.IdentifyResult, error)
	Evolve(ctx context.Context, schemaID string, newColumns []schema.FileColumn, opts schema.EvolveOptions) (*schema.EvolveResult, error)
	History(ctx context.Context, id string) ([]*schema.GlobalSchema, error)
}

// MergeService manages column merges.
type MergeService interface {
	Create(ctx context.Context, req merge.CreateRequest) (*merge.ColumnMerge, error)
	List(ctx context.Context, fileID string) ([]*merge.ColumnMerge, error)
	Delete(ctx context.Context, id string) error
	Preview(ctx context.Context, req merge.PreviewRequest) ([]map[string]any, error)
}

// CacheStatsSource exposes schema cache counters.
type CacheStatsSource interface {
	Stats() schema.CacheStats
}

// Handler provides the REST API.
type Handler struct {
	mux        *http.ServeMux
	queries    QueryService
	schemas    SchemaService
	merges     MergeService
	cacheStats CacheStatsSource
	auditLog   audit.Logger
	checker    *health.Checker
	authMiddle func(http.Handler) http.Handler
}

// Options carries the optional handler collaborators.
type Options struct {
	// CacheStats exposes schema cache counters; nil hides the endpoint.
	CacheStats CacheStatsSource
	// AuditLog serves query history; nil hides the endpoint.
	AuditLog audit.Logger
	// Checker serves readiness; nil makes /readyz always ready.
	Checker *health.Checker
	// AuthMiddle wraps every API route when non-nil.
	AuthMiddle func(http.Handler) http.Handler
}

// NewHandler creates the API handler.
func NewHandler(queries QueryService, schemas SchemaService, merges MergeService, opts Options) *Handler {
	h := &Handler{
		mux:        http.NewServeMux(),
		queries:    queries,
		schemas:    schemas,
		merges:     merges,
		cacheStats: opts.CacheStats,
		auditLog:   opts.AuditLog,
		checker:    opts.Checker,
		authMiddle: opts.AuthMiddle,
	}
	if h.checker == nil {
		h.checker = health.NewChecker()
		h.checker.SetReady()
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler. Health probes bypass auth.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthz":
		h.checker.LivenessHandler()(w, r)
		return
	case "/readyz":
		h.checker.ReadinessHandler()(w, r)
		return
	}
	if h.authMiddle != nil {
		h.authMiddle(h.mux).ServeHTTP(w, r)
		return
	}
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all API routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /api/v1/query", h.handleQuery)
	h.mux.HandleFunc("POST /api/v1/schemas/{id}/identify", h.handleIdentify)
	h.mux.HandleFunc("POST /api/v1/schemas/{id}/evolve", h.handleEvolve)
	h.mux.HandleFunc("GET /api/v1/schemas/{id}/versions", h.handleVersions)
	h.mux.HandleFunc("POST /api/v1/merges", h.handleMergeCreate)
	h.mux.HandleFunc("POST /api/v1/merges/preview", h.handleMergePreview)
	h.mux.HandleFunc("DELETE /api/v1/merges/{id}", h.handleMergeDelete)
	h.mux.HandleFunc("GET /api/v1/files/{fileID}/merges", h.handleMergeList)
	if h.auditLog != nil {
		h.mux.HandleFunc("GET /api/v1/query/history", h.handleQueryHistory)
	}
	if h.cacheStats != nil {
		h.mux.HandleFunc("GET /api/v1/stats/schema-cache", h.handleCacheStats)
	}
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cacheStats.Stats())
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON decodes a request body.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
