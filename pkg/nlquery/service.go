package nlquery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tabletalk/tabletalk/pkg/audit"
	"github.com/tabletalk/tabletalk/pkg/schema"
)

// SchemaSource provides the schema snapshot a request grounds against.
// schema.Service implements this.
type SchemaSource interface {
	Get(ctx context.Context, id string, bypassCache bool) (*schema.GlobalSchema, error)
}

// Service runs the full pipeline: context build, generation, repair,
// validation, execution. Repair and validation always run before
// execution; execution failures are reported, never auto-retried.
type Service struct {
	schemas   SchemaSource
	schemaID  string
	builder   *ContextBuilder
	generator *Generator
	executor  *Executor
	auditor   audit.Logger
}

// NewService creates the query pipeline service. schemaID names the
// global schema all requests ground against; a nil auditor disables
// query logging.
func NewService(schemas SchemaSource, schemaID string, builder *ContextBuilder, generator *Generator, executor *Executor, auditor audit.Logger) *Service {
	if auditor == nil {
		auditor = audit.NopLogger{}
	}
	return &Service{
		schemas:   schemas,
		schemaID:  schemaID,
		builder:   builder,
		generator: generator,
		executor:  executor,
		auditor:   auditor,
	}
}

// Query answers a natural-language request. The returned Result is
// never nil and carries the generated SQL as soon as it exists, even
// when a later stage fails; the error describes the failing stage.
func (s *Service) Query(ctx context.Context, req Request) (*Result, error) {
	req.Text = SanitizeQuestion(req.Text)

	start := time.Now()
	result, err := s.run(ctx, req)

	event := audit.NewEvent(req.UserID, req.Text)
	event.FileID = req.FileID
	event.WithResult(result.SQLQuery, result.TotalRows, err, time.Since(start))
	if logErr := s.auditor.Log(ctx, *event); logErr != nil {
		slog.Warn("query audit log failed", "error", logErr)
	}

	return result, err
}

func (s *Service) run(ctx context.Context, req Request) (*Result, error) {
	result := &Result{CurrentPage: req.Page, Rows: []map[string]any{}}

	gs, err := s.schemas.Get(ctx, s.schemaID, false)
	if err != nil {
		return result, fmt.Errorf("loading schema: %w", err)
	}

	var scope []string
	if req.FileID != "" {
		scope = []string{req.FileID}
	}
	schemaContext, err := s.builder.Build(ctx, gs, scope)
	if err != nil {
		return result, fmt.Errorf("building schema context: %w", err)
	}

	candidate, err := s.generator.Generate(ctx, req.Text, schemaContext, nil)
	if err != nil {
		return result, err
	}

	repaired := Fix(candidate)
	result.SQLQuery = repaired
	if repaired != candidate {
		slog.Debug("repaired truncated query", "user_id", req.UserID)
	}

	verdict := Validate(repaired)
	if !verdict.Valid {
		slog.Warn("query rejected by validator",
			"user_id", req.UserID, "reason", verdict.Reason)
		return result, verdict.Err()
	}

	exec, err := s.executor.Execute(ctx, repaired, req.Page, req.PageSize)
	if err != nil {
		return result, err
	}

	result.Columns = exec.Columns
	result.Rows = exec.Rows
	result.TotalRows = exec.TotalRows
	result.TotalPages = exec.TotalPages
	result.CurrentPage = exec.CurrentPage
	result.ExecutionTime = exec.ExecutionTime
	result.ExecutionMS = exec.ExecutionTime.Milliseconds()

	slog.Info("query executed",
		"user_id", req.UserID,
		"rows", len(exec.Rows),
		"total_rows", exec.TotalRows,
		"duration_ms", exec.ExecutionTime.Milliseconds(),
	)
	return result, nil
}
