package nlquery

import (
	"fmt"
	"strings"
)

// blockedKeywords are mutating operations rejected anywhere in the
// query text, matched as case-insensitive substrings.
var blockedKeywords = []string{
	"drop",
	"delete",
	"truncate",
	"update",
	"insert",
	"alter",
	"create",
	"grant",
	"revoke",
}

// Verdict is a validation outcome. SQLQuery always carries the exact
// subject text, pass or fail.
type Verdict struct {
	SQLQuery string `json:"sqlQuery"`
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
	Keyword  string `json:"keyword,omitempty"`
}

// Err returns the verdict as a *ValidationError, or nil when valid.
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	return &ValidationError{SQL: v.SQLQuery, Reason: v.Reason}
}

// Validate enforces the read-only safety policy: the trimmed text must
// start with SELECT (case-insensitive) and must not contain any blocked
// keyword as a case-insensitive substring.
//
// This is a coarse textual defense, not a parser. It can false-positive
// on a literal value that happens to contain a blocked word, and it can
// false-negative on keywords hidden in comments or obfuscated text; the
// row store's own permissions are the backstop.
func Validate(sqlText string) Verdict {
	lower := strings.ToLower(strings.TrimSpace(sqlText))

	if !strings.HasPrefix(lower, "select") {
		return Verdict{
			SQLQuery: sqlText,
			Reason:   "only read-only SELECT queries are allowed",
		}
	}

	for _, kw := range blockedKeywords {
		if strings.Contains(lower, kw) {
			return Verdict{
				SQLQuery: sqlText,
				Reason:   fmt.Sprintf("query contains blocked keyword %q", kw),
				Keyword:  kw,
			}
		}
	}

	return Verdict{SQLQuery: sqlText, Valid: true}
}
