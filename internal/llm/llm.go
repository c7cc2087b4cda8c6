// Package llm provides the answer-generation client contract.
package llm

import (
	"context"
	"errors"
)

// ErrGeneration wraps all answer service failures: unreachable service,
// non-2xx responses, malformed payloads. Match with errors.Is.
var ErrGeneration = errors.New("generation service failure")

// GenerateOptions configures a generation request.
type GenerateOptions struct {
	// Model overrides the client's default model when set.
	Model string

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float32

	// MaxTokens limits the response length; 0 means the client default.
	MaxTokens int
}

// LLM is a pure prompt-to-text service. No retries happen at this level;
// retry policy belongs to the caller.
type LLM interface {
	// Generate sends a prompt and blocks until the full response arrives.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
