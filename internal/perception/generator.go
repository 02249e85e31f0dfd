// Package perception wraps the external content generator that both producer
// agents rely on. The loop only sees the Generator interface; concrete
// backends (Gemini via google.golang.org/genai, a scripted replay for offline
// runs) and middleware (timeout, retry, cache, logging) live here.
package perception

import (
	"context"
	"errors"
	"fmt"
)

// ErrGeneratorUnavailable marks a generator that cannot serve any further
// request in this session (bad credentials, exhausted script, closed client).
// The orchestrator stops the session when it sees this error.
var ErrGeneratorUnavailable = errors.New("generator unavailable")

// PermanentError wraps failures that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so WithRetry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Request is one generation call.
type Request struct {
	// Skill names the caller, for logs and scripted replies.
	Skill  string
	System string
	Prompt string
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Name implements Generator.
func (f GeneratorFunc) Name() string { return "func" }

// Unavailable builds an ErrGeneratorUnavailable with a reason.
func Unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrGeneratorUnavailable, fmt.Sprintf(format, args...))
}
