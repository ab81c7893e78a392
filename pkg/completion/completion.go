// Package completion provides a narrow client for a remote
// text-completion service: prompt in, completion text or error out.
package completion

import "context"

// Client produces a text completion for a prompt. Implementations are
// fallible and latency-bearing; calls must honor the context deadline.
type Client interface {
	// Complete returns the completion text for the prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name returns the client name for logging.
	Name() string
}

// StaticClient returns a fixed completion for every prompt. Useful for
// tests and offline wiring.
type StaticClient struct {
	Response string
	Err      error
}

// Complete returns the configured response or error.
func (c *StaticClient) Complete(_ context.Context, _ string) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}
	return c.Response, nil
}

// Name returns the client name.
func (*StaticClient) Name() string { return "static" }

// Verify interface compliance.
var _ Client = (*StaticClient)(nil)
