package nlquery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tabletalk/tabletalk/pkg/completion"
)

// flakyClient fails a configured number of calls before succeeding.
type flakyClient struct {
	failures int
	calls    int
	response string
}

func (c *flakyClient) Complete(_ context.Context, _ string) (string, error) {
	c.calls++
	if c.calls <= c.failures {
		return "", errors.New("temporarily unavailable")
	}
	return c.response, nil
}

func (*flakyClient) Name() string { return "flaky" }

func TestGenerate_Success(t *testing.T) {
	client := &completion.StaticClient{Response: "SELECT * FROM file_abc"}
	g := NewGenerator(client, GeneratorConfig{RetryBackoff: time.Millisecond})

	got, err := g.Generate(context.Background(), "all rows", "Table file_abc (1 rows):", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "SELECT * FROM file_abc" {
		t.Errorf("got %q", got)
	}
}

func TestGenerate_StripsCodeFence(t *testing.T) {
	client := &completion.StaticClient{Response: "```sql\nSELECT 1\n```"}
	g := NewGenerator(client, GeneratorConfig{RetryBackoff: time.Millisecond})

	got, err := g.Generate(context.Background(), "one", "", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "SELECT 1" {
		t.Errorf("got %q, want %q", got, "SELECT 1")
	}
}

func TestGenerate_RetriesOnce(t *testing.T) {
	client := &flakyClient{failures: 1, response: "SELECT 1"}
	g := NewGenerator(client, GeneratorConfig{RetryBackoff: time.Millisecond})

	got, err := g.Generate(context.Background(), "one", "", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "SELECT 1" {
		t.Errorf("got %q", got)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want 2", client.calls)
	}
}

func TestGenerate_SecondFailureSurfaces(t *testing.T) {
	client := &flakyClient{failures: 2}
	g := NewGenerator(client, GeneratorConfig{RetryBackoff: time.Millisecond})

	_, err := g.Generate(context.Background(), "one", "", nil)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %T(%v), want *GenerationError", err, err)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want exactly one retry", client.calls)
	}
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	client := &completion.StaticClient{Response: "   "}
	g := NewGenerator(client, GeneratorConfig{RetryBackoff: time.Millisecond})

	_, err := g.Generate(context.Background(), "one", "", nil)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %T(%v), want *GenerationError", err, err)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("how many rows?", "Table file_abc (3 rows):",
		[]Turn{{Question: "first question", SQL: "SELECT 1"}})

	for _, want := range []string{
		"Table file_abc (3 rows):",
		"Previous question: first question",
		"Previous SQL: SELECT 1",
		"Question: how many rows?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	if !strings.HasSuffix(prompt, "Question: how many rows?") {
		t.Error("question should come last")
	}
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SELECT 1", "SELECT 1"},
		{"```sql\nSELECT 1\n```", "SELECT 1"},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"Here you go:\n```sql\nSELECT 1\n```\nEnjoy.", "SELECT 1"},
		{"  SELECT 1  ", "SELECT 1"},
		{"SELECT name FROM file_abc;", "SELECT name FROM file_abc"},
		{"```sql\nSELECT 1;\n```", "SELECT 1"},
		{"SELECT 1;; ", "SELECT 1"},
	}

	for _, tt := range tests {
		if got := extractSQL(tt.input); got != tt.want {
			t.Errorf("extractSQL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
