package api

import (
	"errors"
	"net/http"

	"github.com/tabletalk/tabletalk/pkg/auth"
	"github.com/tabletalk/tabletalk/pkg/merge"
)

// handleMergeCreate creates a column merge.
func (h *Handler) handleMergeCreate(w http.ResponseWriter, r *http.Request) {
	var req merge.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = auth.UserID(r.Context())

	cm, err := h.merges.Create(r.Context(), req)
	if err != nil {
		writeError(w, mergeErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": cm.ID})
}

// handleMergeList lists a file's merges.
func (h *Handler) handleMergeList(w http.ResponseWriter, r *http.Request) {
	merges, err := h.merges.List(r.Context(), r.PathValue("fileID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if merges == nil {
		merges = []*merge.ColumnMerge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"columnMerges": merges})
}

// handleMergeDelete deletes a merge. Deleting an absent id succeeds.
func (h *Handler) handleMergeDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.merges.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleMergePreview computes sample merged rows without persisting.
func (h *Handler) handleMergePreview(w http.ResponseWriter, r *http.Request) {
	var req merge.PreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rows, err := h.merges.Preview(r.Context(), req)
	if err != nil {
		writeError(w, mergeErrorStatus(err), err.Error())
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"previewData": rows})
}

// mergeErrorStatus maps merge failures to HTTP statuses. Validation
// failures (missing columns, too few sources) are client errors.
func mergeErrorStatus(err error) int {
	if errors.Is(err, merge.ErrUnknownColumn) ||
		errors.Is(err, merge.ErrTooFewColumns) ||
		errors.Is(err, merge.ErrNameRequired) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
