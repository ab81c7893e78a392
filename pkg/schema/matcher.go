package schema

import (
	"strings"
	"unicode"
)

// DefaultFuzzyThreshold is the minimum similarity for a fuzzy match.
const DefaultFuzzyThreshold = 0.6

// MatcherConfig configures the evolution matcher.
type MatcherConfig struct {
	// FuzzyThreshold is the minimum name similarity in (0,1] for a
	// fuzzy match (default: 0.6). Scores below it classify as none.
	FuzzyThreshold float64
}

// Matcher classifies file columns against a global schema as exact,
// fuzzy, or new. It is stateless and safe for concurrent use.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher with the given configuration.
func NewMatcher(cfg MatcherConfig) *Matcher {
	threshold := cfg.FuzzyThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	return &Matcher{threshold: threshold}
}

// Identify classifies each file column against the schema. Exact wins
// over fuzzy; fuzzy requires the best similarity to reach the threshold.
// Columns with no acceptable match are returned as NewColumns for
// explicit selection by the caller.
func (m *Matcher) Identify(fileColumns []FileColumn, s *GlobalSchema) *IdentifyResult {
	result := &IdentifyResult{
		Mappings: make([]ColumnMapping, 0, len(fileColumns)),
	}

	for _, fc := range fileColumns {
		mapping := m.matchColumn(fc, s)
		result.Mappings = append(result.Mappings, mapping)
		if mapping.MatchType == MatchNone {
			result.NewColumns = append(result.NewColumns, fc)
		}
	}

	return result
}

// matchColumn finds the best schema column for a single file column.
func (m *Matcher) matchColumn(fc FileColumn, s *GlobalSchema) ColumnMapping {
	var bestName string
	var bestScore float64

	for _, sc := range s.Columns {
		if strings.EqualFold(fc.Name, sc.Name) {
			return ColumnMapping{
				FileColumn:   fc.Name,
				SchemaColumn: sc.Name,
				MatchType:    MatchExact,
				Confidence:   1,
			}
		}
		if score := Similarity(fc.Name, sc.Name); score > bestScore {
			bestScore = score
			bestName = sc.Name
		}
	}

	if bestScore >= m.threshold {
		return ColumnMapping{
			FileColumn:   fc.Name,
			SchemaColumn: bestName,
			MatchType:    MatchFuzzy,
			Confidence:   bestScore,
		}
	}
	return ColumnMapping{FileColumn: fc.Name, MatchType: MatchNone}
}

// Similarity returns a normalized name similarity in [0,1]: 1 minus the
// Levenshtein distance over the longer length, computed on canonical
// forms so snake_case, kebab-case and spacing variants compare cleanly.
func Similarity(a, b string) float64 {
	ca, cb := canonical(a), canonical(b)
	if ca == cb {
		return 1
	}
	longest := max(len(ca), len(cb))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ca, cb))/float64(longest)
}

// canonical lowercases a name and strips everything but letters and
// digits, so "First Name", "first_name" and "first-name" all compare equal.
func canonical(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// levenshtein computes the edit distance between two strings using the
// two-row dynamic programming form.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
