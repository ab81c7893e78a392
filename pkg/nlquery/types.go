// Package nlquery turns natural-language questions into safe,
// executable read-only SQL: grounding context, generation, truncation
// repair, validation, and paginated execution.
package nlquery

import "time"

// Request is a single natural-language query request. Immutable once
// issued; each request is independent of any other.
type Request struct {
	Text     string `json:"naturalLanguageText"`
	UserID   string `json:"userId"`
	FileID   string `json:"fileScope,omitempty"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// Result is the outcome of a query request. SQLQuery is always
// populated once generation succeeds, even when a later stage fails:
// callers need the text for diagnosis and sharing.
type Result struct {
	SQLQuery      string           `json:"sqlQuery"`
	Columns       []string         `json:"columns,omitempty"`
	Rows          []map[string]any `json:"rows"`
	ExecutionTime time.Duration    `json:"-"`
	ExecutionMS   int64            `json:"executionTime"`
	TotalRows     int64            `json:"totalRows"`
	TotalPages    int              `json:"totalPages"`
	CurrentPage   int              `json:"currentPage"`
	Error         string           `json:"error,omitempty"`
}

// Turn is one prior exchange carried into generation for follow-up
// questions.
type Turn struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}
