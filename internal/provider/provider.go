package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message is one conversational turn passed as model context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Caller is an interchangeable text-generation backend.
type Caller interface {
	Name() string
	// Call sends one user message plus capped history and returns the reply text.
	Call(ctx context.Context, model, message string, history []Message, systemPrompt string) (string, error)
}

// ErrNotConfigured marks a backend whose credentials are missing.
var ErrNotConfigured = errors.New("provider not configured")

// CallError describes a failed request against a configured backend.
type CallError struct {
	Provider    string
	StatusCode  int
	RateLimited bool
	Err         error
}

func (e *CallError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("%s rate limited: %v", e.Provider, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s call failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", e.Provider, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Attempt records one backend try for error reporting.
type Attempt struct {
	Provider string
	Model    string
	Err      error
}

// AllProvidersFailedError is surfaced when primary and fallback both failed.
// The conversation is left untouched in that case.
type AllProvidersFailedError struct {
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s/%s: %v", a.Provider, a.Model, a.Err))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}
