package api

import (
	"errors"
	"net/http"

	"github.com/tabletalk/tabletalk/pkg/schema"
)

type identifyRequest struct {
	FileColumns []schema.FileColumn `json:"fileColumns"`
}

// handleIdentify classifies file columns against a schema.
func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	schemaID := r.PathValue("id")

	var req identifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.FileColumns) == 0 {
		writeError(w, http.StatusBadRequest, "fileColumns is required")
		return
	}

	result, err := h.schemas.Identify(r.Context(), schemaID, req.FileColumns)
	if err != nil {
		writeError(w, schemaErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type evolveRequest struct {
	NewColumns []schema.FileColumn  `json:"newColumns"`
	Options    schema.EvolveOptions `json:"options"`
}

type evolveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleEvolve applies accepted new columns to a schema. A lost version
// race returns 409 so the caller can re-fetch and resubmit.
func (h *Handler) handleEvolve(w http.ResponseWriter, r *http.Request) {
	schemaID := r.PathValue("id")

	var req evolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.schemas.Evolve(r.Context(), schemaID, req.NewColumns, req.Options)
	if err != nil {
		writeError(w, schemaErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, evolveResponse{Success: result.Success, Message: result.Message})
}

// handleVersions returns a schema's version history, newest first.
func (h *Handler) handleVersions(w http.ResponseWriter, r *http.Request) {
	history, err := h.schemas.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, schemaErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": history})
}

func schemaErrorStatus(err error) int {
	switch {
	case errors.Is(err, schema.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
