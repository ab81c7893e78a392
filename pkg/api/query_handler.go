package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tabletalk/tabletalk/pkg/audit"
	"github.com/tabletalk/tabletalk/pkg/auth"
	"github.com/tabletalk/tabletalk/pkg/nlquery"
	"github.com/tabletalk/tabletalk/pkg/schema"
)

// handleQuery answers a natural-language query. The response body is
// always the full result shape: on failure the error field is set and
// sqlQuery still carries whatever text was generated.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req nlquery.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "naturalLanguageText is required")
		return
	}
	if req.UserID == "" {
		req.UserID = auth.UserID(r.Context())
	}

	result, err := h.queries.Query(r.Context(), req)
	if err != nil {
		result.Error = err.Error()
		writeJSON(w, queryErrorStatus(err), result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleQueryHistory lists recorded query events, newest first. Filters
// come from query parameters: user_id, file_id, success, start, end
// (RFC 3339), limit and offset.
func (h *Handler) handleQueryHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.auditLog.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "querying history: "+err.Error())
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func historyFilter(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		UserID: q.Get("user_id"),
		FileID: q.Get("file_id"),
	}

	if v := q.Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("invalid success parameter")
		}
		filter.Success = &success
	}
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("invalid start time, want RFC 3339")
		}
		filter.StartTime = &t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("invalid end time, want RFC 3339")
		}
		filter.EndTime = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("invalid limit parameter")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("invalid offset parameter")
		}
		filter.Offset = n
	}
	return filter, nil
}

// queryErrorStatus maps pipeline failures to HTTP statuses.
func queryErrorStatus(err error) int {
	var genErr *nlquery.GenerationError
	var valErr *nlquery.ValidationError
	var execErr *nlquery.ExecutionError

	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &genErr):
		return http.StatusBadGateway
	case errors.As(err, &execErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, schema.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
