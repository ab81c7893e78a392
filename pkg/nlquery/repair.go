package nlquery

import "strings"

// Fix heuristically repairs SQL text cut short by the generation step.
// Four ordered rules, nothing more:
//
//  1. An odd number of single quotes gets one appended, closing an
//     unterminated string literal.
//  2. An "IN (" list followed by " AND " with no ")" between them gets
//     a ")" inserted before the " AND ".
//  3. Otherwise an "IN (" with no ")" after it at all gets a ")" appended.
//  4. Any remaining paren deficit (opens minus closes) is closed by
//     appending that many ")".
//
// Fix is idempotent and guarantees an even quote count and non-negative
// paren balance on output. It is a best-effort heuristic, not a parser;
// SQL broken in other ways passes through for the validator and row
// store to reject.
func Fix(s string) string {
	if strings.Count(s, "'")%2 == 1 {
		s += "'"
	}
	s = closeTruncatedInList(s)
	if deficit := strings.Count(s, "(") - strings.Count(s, ")"); deficit > 0 {
		s += strings.Repeat(")", deficit)
	}
	return s
}

// closeTruncatedInList applies rules 2 and 3: close an IN list either
// before a following predicate or at the end of the text.
func closeTruncatedInList(s string) string {
	upper := strings.ToUpper(s)
	inIdx := strings.Index(upper, "IN (")
	if inIdx < 0 {
		return s
	}

	rest := upper[inIdx+len("IN ("):]
	andIdx := strings.Index(rest, " AND ")
	if andIdx >= 0 && !strings.Contains(rest[:andIdx], ")") {
		pos := inIdx + len("IN (") + andIdx
		return s[:pos] + ")" + s[pos:]
	}
	if !strings.Contains(rest, ")") {
		return s + ")"
	}
	return s
}
