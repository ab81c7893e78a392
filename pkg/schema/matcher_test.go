package schema

import (
	"math"
	"testing"
)

func matcherSchema() *GlobalSchema {
	return &GlobalSchema{
		ID:   "s1",
		Name: "customers",
		Columns: []Column{
			{Name: "email", Type: "text"},
			{Name: "first_name", Type: "text"},
			{Name: "age", Type: "integer"},
		},
	}
}

func TestIdentify_ExactMatchIgnoresCase(t *testing.T) {
	m := NewMatcher(MatcherConfig{})
	result := m.Identify([]FileColumn{{Name: "EMAIL"}}, matcherSchema())

	if len(result.Mappings) != 1 {
		t.Fatalf("got %d mappings, want 1", len(result.Mappings))
	}
	mapping := result.Mappings[0]
	if mapping.MatchType != MatchExact {
		t.Errorf("MatchType = %q, want exact", mapping.MatchType)
	}
	if mapping.SchemaColumn != "email" {
		t.Errorf("SchemaColumn = %q, want email", mapping.SchemaColumn)
	}
	if mapping.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", mapping.Confidence)
	}
	if len(result.NewColumns) != 0 {
		t.Errorf("NewColumns = %v, want none", result.NewColumns)
	}
}

func TestIdentify_FuzzyMatch(t *testing.T) {
	m := NewMatcher(MatcherConfig{})
	// "emial" vs "email": similarity 0.6, exactly at the default threshold
	result := m.Identify([]FileColumn{{Name: "emial"}}, matcherSchema())

	mapping := result.Mappings[0]
	if mapping.MatchType != MatchFuzzy {
		t.Fatalf("MatchType = %q, want fuzzy (confidence %v)", mapping.MatchType, mapping.Confidence)
	}
	if mapping.SchemaColumn != "email" {
		t.Errorf("SchemaColumn = %q, want email", mapping.SchemaColumn)
	}
	if mapping.Confidence < 0.6 || mapping.Confidence > 1 {
		t.Errorf("Confidence = %v, want in [0.6, 1]", mapping.Confidence)
	}
}

func TestIdentify_CanonicalFormsMatchFuzzy(t *testing.T) {
	m := NewMatcher(MatcherConfig{})
	// not equal under EqualFold, but canonical forms are identical
	result := m.Identify([]FileColumn{{Name: "First Name"}}, matcherSchema())

	mapping := result.Mappings[0]
	if mapping.MatchType != MatchFuzzy {
		t.Fatalf("MatchType = %q, want fuzzy", mapping.MatchType)
	}
	if mapping.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", mapping.Confidence)
	}
}

func TestIdentify_NoMatchIsNew(t *testing.T) {
	m := NewMatcher(MatcherConfig{})
	result := m.Identify([]FileColumn{{Name: "zzzz", Type: "text"}}, matcherSchema())

	mapping := result.Mappings[0]
	if mapping.MatchType != MatchNone {
		t.Fatalf("MatchType = %q, want none", mapping.MatchType)
	}
	if mapping.SchemaColumn != "" {
		t.Errorf("SchemaColumn = %q, want empty", mapping.SchemaColumn)
	}
	if len(result.NewColumns) != 1 || result.NewColumns[0].Name != "zzzz" {
		t.Errorf("NewColumns = %v, want [zzzz]", result.NewColumns)
	}
}

func TestIdentify_ThresholdBoundary(t *testing.T) {
	// raise the threshold so the 0.6-similar pair no longer matches
	m := NewMatcher(MatcherConfig{FuzzyThreshold: 0.8})
	result := m.Identify([]FileColumn{{Name: "emial"}}, matcherSchema())

	if result.Mappings[0].MatchType != MatchNone {
		t.Errorf("MatchType = %q, want none above threshold", result.Mappings[0].MatchType)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"email", "email", 1},
		{"first_name", "First Name", 1},
		{"user-id", "user_id", 1},
		{"emial", "email", 0.6},
		{"abc", "", 0},
	}

	for _, tt := range tests {
		got := Similarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}

	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
