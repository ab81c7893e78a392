// Package server wires configuration, storage and services into the
// HTTP server.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	// PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/tabletalk/tabletalk/pkg/api"
	auditpg "github.com/tabletalk/tabletalk/pkg/audit/postgres"
	"github.com/tabletalk/tabletalk/pkg/auth"
	"github.com/tabletalk/tabletalk/pkg/completion"
	"github.com/tabletalk/tabletalk/pkg/database/migrate"
	"github.com/tabletalk/tabletalk/pkg/health"
	"github.com/tabletalk/tabletalk/pkg/merge"
	mergepg "github.com/tabletalk/tabletalk/pkg/merge/postgres"
	"github.com/tabletalk/tabletalk/pkg/nlquery"
	"github.com/tabletalk/tabletalk/pkg/platform"
	"github.com/tabletalk/tabletalk/pkg/rowstore"
	"github.com/tabletalk/tabletalk/pkg/schema"
	schemapg "github.com/tabletalk/tabletalk/pkg/schema/postgres"
)

// Version is set at build time.
var Version = "dev"

// Server is the assembled application.
type Server struct {
	cfg        *platform.Config
	db         *sql.DB
	checker    *health.Checker
	httpServer *http.Server
}

// New builds the server from configuration: database, migrations,
// stores, the query pipeline and the HTTP handler.
func New(cfg *platform.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := migrate.Run(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	checker := health.NewChecker()
	handler := buildHandler(cfg, db, checker)

	return &Server{
		cfg:     cfg,
		db:      db,
		checker: checker,
		httpServer: &http.Server{
			Addr:              cfg.Server.Address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// buildHandler assembles the service graph behind the API handler.
func buildHandler(cfg *platform.Config, db *sql.DB, checker *health.Checker) http.Handler {
	schemaStore := schemapg.New(db)
	cache := schema.NewCache(schemaStore, schema.CacheConfig{TTL: cfg.Schema.CacheTTL})
	matcher := schema.NewMatcher(schema.MatcherConfig{FuzzyThreshold: cfg.Schema.FuzzyThreshold})
	schemaSvc := schema.NewService(schemaStore, cache, matcher)

	client := completion.NewHTTPClient(completion.HTTPConfig{
		BaseURL:   cfg.Completion.BaseURL,
		APIKey:    cfg.Completion.APIKey,
		Model:     cfg.Completion.Model,
		Timeout:   cfg.Completion.Timeout,
		MaxTokens: cfg.Completion.MaxTokens,
	})

	reader := rowstore.NewReader(db)
	builder := nlquery.NewContextBuilder(reader, nlquery.ContextBuilderConfig{
		SampleRows: cfg.Query.SampleRows,
	})
	generator := nlquery.NewGenerator(client, nlquery.GeneratorConfig{
		RetryBackoff: cfg.Query.RetryBackoff,
	})
	executor := nlquery.NewExecutor(db, nlquery.ExecutorConfig{
		StatementTimeout: cfg.Query.StatementTimeout,
		MaxRows:          cfg.Query.MaxRows,
	})
	auditor := auditpg.New(db)
	querySvc := nlquery.NewService(schemaSvc, cfg.Query.SchemaID, builder, generator, executor, auditor)

	mergeSvc := merge.NewManager(mergepg.New(db), reader, db)

	authMiddle := auth.NewMiddleware(auth.Config{
		SigningKey:     []byte(cfg.Auth.SigningKey),
		APIKeys:        apiKeys(cfg.Auth.APIKeys),
		AllowAnonymous: cfg.Auth.AllowAnonymous,
	})

	return api.LogRequests(api.NewHandler(querySvc, schemaSvc, mergeSvc, api.Options{
		CacheStats: cache,
		AuditLog:   auditor,
		Checker:    checker,
		AuthMiddle: authMiddle.Wrap,
	}))
}

func apiKeys(defs []platform.APIKeyDef) []auth.APIKey {
	keys := make([]auth.APIKey, 0, len(defs))
	for _, d := range defs {
		keys = append(keys, auth.APIKey{Name: d.Name, Hash: d.Hash})
	}
	return keys
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("server listening", "address", s.cfg.Server.Address, "version", Version)
	s.checker.SetReady()
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	s.checker.SetDraining()
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.db.Close(); err == nil {
		err = closeErr
	}
	return err
}
