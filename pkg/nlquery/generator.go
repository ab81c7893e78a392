package nlquery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tabletalk/tabletalk/pkg/completion"
)

// defaultRetryBackoff is the pause before the single automatic retry.
const defaultRetryBackoff = 2 * time.Second

// Generator turns a question plus schema context into candidate SQL by
// calling the completion service. The candidate may be structurally
// incomplete when generation is cut short; Fix handles that downstream.
type Generator struct {
	client  completion.Client
	backoff time.Duration
}

// GeneratorConfig configures the generator.
type GeneratorConfig struct {
	// RetryBackoff is the pause before the single retry (default: 2s).
	RetryBackoff time.Duration
}

// NewGenerator creates a generator over the completion client.
func NewGenerator(client completion.Client, cfg GeneratorConfig) *Generator {
	backoff := cfg.RetryBackoff
	if backoff == 0 {
		backoff = defaultRetryBackoff
	}
	return &Generator{client: client, backoff: backoff}
}

// Generate produces candidate SQL for the question. A failed completion
// call is retried exactly once after a backoff; a second failure
// surfaces as a GenerationError.
func (g *Generator) Generate(ctx context.Context, question, schemaContext string, history []Turn) (string, error) {
	prompt := buildPrompt(question, schemaContext, history)

	text, err := g.client.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("completion call failed, retrying once",
			"client", g.client.Name(), "error", err)

		select {
		case <-ctx.Done():
			return "", &GenerationError{Err: ctx.Err()}
		case <-time.After(g.backoff):
		}

		text, err = g.client.Complete(ctx, prompt)
		if err != nil {
			return "", &GenerationError{Err: err}
		}
	}

	sqlText := extractSQL(text)
	if sqlText == "" {
		return "", &GenerationError{Err: fmt.Errorf("completion returned no query text")}
	}
	return sqlText, nil
}

// buildPrompt assembles the generation prompt: grounding context,
// prior turns, then the question.
func buildPrompt(question, schemaContext string, history []Turn) string {
	var parts []string

	parts = append(parts,
		"You translate questions about tabular data into a single PostgreSQL SELECT statement.",
		"Use only the tables and columns listed below. Respond with SQL only, no explanation.")

	if schemaContext != "" {
		parts = append(parts, schemaContext)
	}

	for _, turn := range history {
		parts = append(parts, fmt.Sprintf("Previous question: %s\nPrevious SQL: %s", turn.Question, turn.SQL))
	}

	parts = append(parts, "Question: "+question)
	return strings.Join(parts, "\n\n")
}

// extractSQL strips markdown code fences and surrounding prose from a
// completion, keeping the query text itself. Trailing semicolons are
// removed; the executor wraps the query in subselects, and a statement
// terminator inside the wrapper is a syntax error.
func extractSQL(text string) string {
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+3:]
		rest = strings.TrimPrefix(rest, "sql")
		rest = strings.TrimPrefix(rest, "\n")
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		text = rest
	}

	text = strings.TrimSpace(text)
	for strings.HasSuffix(text, ";") {
		text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
	}
	return text
}
