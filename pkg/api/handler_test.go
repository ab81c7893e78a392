package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletalk/tabletalk/pkg/audit"
	"github.com/tabletalk/tabletalk/pkg/health"
	"github.com/tabletalk/tabletalk/pkg/merge"
	"github.com/tabletalk/tabletalk/pkg/nlquery"
	"github.com/tabletalk/tabletalk/pkg/schema"
)

type queryStub struct {
	result  *nlquery.Result
	err     error
	lastReq nlquery.Request
}

func (s *queryStub) Query(_ context.Context, req nlquery.Request) (*nlquery.Result, error) {
	s.lastReq = req
	if s.result == nil {
		s.result = &nlquery.Result{Rows: []map[string]any{}}
	}
	return s.result, s.err
}

type schemaStub struct {
	identify *schema.IdentifyResult
	evolve   *schema.EvolveResult
	history  []*schema.GlobalSchema
	err      error
	lastCols []schema.FileColumn
	lastOpts schema.EvolveOptions
}

func (s *schemaStub) Identify(context.Context, string, []schema.FileColumn) (*schema.IdentifyResult, error) {
	return s.identify, s.err
}

func (s *schemaStub) Evolve(_ context.Context, _ string, cols []schema.FileColumn, opts schema.EvolveOptions) (*schema.EvolveResult, error) {
	s.lastCols = cols
	s.lastOpts = opts
	return s.evolve, s.err
}

func (s *schemaStub) History(context.Context, string) ([]*schema.GlobalSchema, error) {
	return s.history, s.err
}

type mergeStub struct {
	created *merge.ColumnMerge
	list    []*merge.ColumnMerge
	preview []map[string]any
	err     error
}

func (s *mergeStub) Create(context.Context, merge.CreateRequest) (*merge.ColumnMerge, error) {
	return s.created, s.err
}

func (s *mergeStub) List(context.Context, string) ([]*merge.ColumnMerge, error) {
	return s.list, s.err
}

func (s *mergeStub) Delete(context.Context, string) error { return s.err }

func (s *mergeStub) Preview(context.Context, merge.PreviewRequest) ([]map[string]any, error) {
	return s.preview, s.err
}

type statsStub struct{ stats schema.CacheStats }

func (s *statsStub) Stats() schema.CacheStats { return s.stats }

func newTestHandler(queries QueryService, schemas SchemaService, merges MergeService, opts Options) *Handler {
	if queries == nil {
		queries = &queryStub{}
	}
	if schemas == nil {
		schemas = &schemaStub{}
	}
	if merges == nil {
		merges = &mergeStub{}
	}
	return NewHandler(queries, schemas, merges, opts)
}

func do(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleQuery_Success(t *testing.T) {
	queries := &queryStub{result: &nlquery.Result{
		SQLQuery:    "SELECT * FROM file_abc",
		Rows:        []map[string]any{{"id": float64(1)}},
		TotalRows:   1,
		TotalPages:  1,
		CurrentPage: 1,
	}}
	h := newTestHandler(queries, nil, nil, Options{})

	rec := do(h, http.MethodPost, "/api/v1/query",
		`{"naturalLanguageText":"all rows","userId":"u1","page":1,"pageSize":25}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result nlquery.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "SELECT * FROM file_abc", result.SQLQuery)
	assert.Equal(t, int64(1), result.TotalRows)
	assert.Equal(t, "all rows", queries.lastReq.Text)
}

func TestHandleQuery_RequiresText(t *testing.T) {
	h := newTestHandler(nil, nil, nil, Options{})
	rec := do(h, http.MethodPost, "/api/v1/query", `{"userId":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQuery_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &nlquery.ValidationError{SQL: "DROP TABLE x", Reason: "blocked"}, http.StatusBadRequest},
		{"generation", &nlquery.GenerationError{Err: context.DeadlineExceeded}, http.StatusBadGateway},
		{"execution", &nlquery.ExecutionError{SQL: "SELECT 1", Err: context.DeadlineExceeded}, http.StatusUnprocessableEntity},
		{"schema missing", schema.ErrNotFound, http.StatusNotFound},
		{"unknown", context.Canceled, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queries := &queryStub{
				result: &nlquery.Result{SQLQuery: "SELECT 1", Rows: []map[string]any{}},
				err:    tt.err,
			}
			h := newTestHandler(queries, nil, nil, Options{})

			rec := do(h, http.MethodPost, "/api/v1/query", `{"naturalLanguageText":"q"}`)
			assert.Equal(t, tt.want, rec.Code)

			// error responses still carry the full result shape with the SQL
			var result nlquery.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.Equal(t, "SELECT 1", result.SQLQuery)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestHandleIdentify(t *testing.T) {
	schemas := &schemaStub{identify: &schema.IdentifyResult{
		Mappings: []schema.ColumnMapping{
			{FileColumn: "Email", SchemaColumn: "email", MatchType: schema.MatchExact, Confidence: 1},
		},
	}}
	h := newTestHandler(nil, schemas, nil, Options{})

	rec := do(h, http.MethodPost, "/api/v1/schemas/s1/identify",
		`{"fileColumns":[{"name":"Email","type":"text"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result schema.IdentifyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Mappings, 1)
	assert.Equal(t, schema.MatchExact, result.Mappings[0].MatchType)

	// the wire shape is camelCase like every other endpoint
	body := rec.Body.String()
	assert.Contains(t, body, `"matchType"`)
	assert.Contains(t, body, `"newColumns"`)
	assert.Contains(t, body, `"fileColumn"`)
	assert.NotContains(t, body, `"match_type"`)
}

func TestHandleIdentify_RequiresColumns(t *testing.T) {
	h := newTestHandler(nil, nil, nil, Options{})
	rec := do(h, http.MethodPost, "/api/v1/schemas/s1/identify", `{"fileColumns":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvolve_Success(t *testing.T) {
	schemas := &schemaStub{evolve: &schema.EvolveResult{Success: true, Message: "added 1 column(s)"}}
	h := newTestHandler(nil, schemas, nil, Options{})

	rec := do(h, http.MethodPost, "/api/v1/schemas/s1/evolve",
		`{"newColumns":[{"name":"phone","type":"text"}],
		  "options":{"addNewColumns":true,"migrateData":true,"updateExistingRecords":false,"createNewVersion":true}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp evolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	// camelCase option flags must reach the service intact
	require.Len(t, schemas.lastCols, 1)
	assert.Equal(t, "phone", schemas.lastCols[0].Name)
	assert.True(t, schemas.lastOpts.AddNewColumns)
	assert.True(t, schemas.lastOpts.MigrateData)
	assert.False(t, schemas.lastOpts.UpdateExistingRecords)
	assert.True(t, schemas.lastOpts.CreateNewVersion)
}

func TestHandleEvolve_Conflict(t *testing.T) {
	schemas := &schemaStub{err: schema.ErrConflict}
	h := newTestHandler(nil, schemas, nil, Options{})

	rec := do(h, http.MethodPost, "/api/v1/schemas/s1/evolve", `{"options":{}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleVersions_NotFound(t *testing.T) {
	schemas := &schemaStub{err: schema.ErrNotFound}
	h := newTestHandler(nil, schemas, nil, Options{})

	rec := do(h, http.MethodGet, "/api/v1/schemas/gone/versions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMergeCreate(t *testing.T) {
	merges := &mergeStub{created: &merge.ColumnMerge{ID: "m1"}}
	h := newTestHandler(nil, nil, merges, Options{})

	rec := do(h, http.MethodPost, "/api/v1/merges",
		`{"fileId":"abc","mergeName":"full name","columnList":["a","b"],"delimiter":" "}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "m1", resp["id"])
}

func TestHandleMergeCreate_ValidationErrors(t *testing.T) {
	for _, err := range []error{merge.ErrNameRequired, merge.ErrTooFewColumns, merge.ErrUnknownColumn} {
		merges := &mergeStub{err: err}
		h := newTestHandler(nil, nil, merges, Options{})

		rec := do(h, http.MethodPost, "/api/v1/merges", `{"fileId":"abc"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "error %v", err)
	}
}

func TestHandleMergeList_EmptyIsArray(t *testing.T) {
	h := newTestHandler(nil, nil, &mergeStub{}, Options{})

	rec := do(h, http.MethodGet, "/api/v1/files/abc/merges", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"columnMerges":[]`)
}

func TestHandleMergeDelete(t *testing.T) {
	h := newTestHandler(nil, nil, &mergeStub{}, Options{})

	rec := do(h, http.MethodDelete, "/api/v1/merges/m1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestHandleMergePreview(t *testing.T) {
	merges := &mergeStub{preview: []map[string]any{{"a": "x", "b": "y", "merged": "x y"}}}
	h := newTestHandler(nil, nil, merges, Options{})

	rec := do(h, http.MethodPost, "/api/v1/merges/preview",
		`{"fileId":"abc","columnList":["a","b"],"delimiter":" "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"merged":"x y"`)
}

func TestHandleQueryHistory(t *testing.T) {
	logger := &historyStub{events: []audit.Event{
		{ID: "e1", UserID: "u1", Question: "q", SQLQuery: "SELECT 1", Success: true},
	}}
	h := newTestHandler(nil, nil, nil, Options{AuditLog: logger})

	rec := do(h, http.MethodGet, "/api/v1/query/history?user_id=u1&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", logger.lastFilter.UserID)
	assert.Equal(t, 10, logger.lastFilter.Limit)
	assert.Contains(t, rec.Body.String(), `"sql_query":"SELECT 1"`)
}

func TestHandleQueryHistory_InvalidParams(t *testing.T) {
	h := newTestHandler(nil, nil, nil, Options{AuditLog: &historyStub{}})

	for _, path := range []string{
		"/api/v1/query/history?success=maybe",
		"/api/v1/query/history?start=yesterday",
		"/api/v1/query/history?limit=-1",
	} {
		rec := do(h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestHandleQueryHistory_HiddenWithoutLogger(t *testing.T) {
	h := newTestHandler(nil, nil, nil, Options{})
	rec := do(h, http.MethodGet, "/api/v1/query/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type historyStub struct {
	events     []audit.Event
	lastFilter audit.QueryFilter
}

func (s *historyStub) Log(context.Context, audit.Event) error { return nil }

func (s *historyStub) Query(_ context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	s.lastFilter = filter
	return s.events, nil
}

func TestHandleCacheStats(t *testing.T) {
	h := newTestHandler(nil, nil, nil, Options{CacheStats: &statsStub{stats: schema.CacheStats{Hits: 7, Misses: 2}}})

	rec := do(h, http.MethodGet, "/api/v1/stats/schema-cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hits":7`)
}

func TestHealthEndpoints(t *testing.T) {
	checker := health.NewChecker()
	h := newTestHandler(nil, nil, nil, Options{Checker: checker})

	rec := do(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	checker.SetReady()
	rec = do(h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// Health probes must not require credentials; API routes go through auth.
func TestHealthBypassesAuth(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	h := newTestHandler(nil, nil, nil, Options{AuthMiddle: deny})

	rec := do(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/files/abc/merges", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
