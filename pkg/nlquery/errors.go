package nlquery

import "fmt"

// GenerationError indicates the completion call failed or timed out
// after its single automatic retry.
type GenerationError struct {
	Err error
}

// Error implements error.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("query generation failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error { return e.Err }

// ValidationError indicates the candidate SQL failed the read-only
// safety policy. SQL always carries the exact subject text.
type ValidationError struct {
	SQL    string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string { return e.Reason }

// ExecutionError indicates the row store rejected the SQL or timed
// out. SQL always carries the text that failed.
type ExecutionError struct {
	SQL string
	Err error
}

// Error implements error.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error { return e.Err }
