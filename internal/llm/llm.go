// Package llm wraps the optional model collaborator used for report
// insights. The pipeline treats the collaborator as best-effort: a nil or
// failing client always degrades to rule-based output.
package llm

import (
	"context"
	"errors"
)

var ErrEmptyResponse = errors.New("llm: empty response from model")

// Client generates free-form text from a prompt. Implementations must be
// safe for concurrent use.
type Client interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (string, error)
	Close() error
}

// Configured reports whether a usable client is present.
func Configured(c Client) bool { return c != nil }
