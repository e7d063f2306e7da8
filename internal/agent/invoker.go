package agent

import (
	"context"
	"fmt"
)

// Request carries everything an invocation backend needs for one call.
// The orchestration core builds requests; it never talks to a model directly.
type Request struct {
	Role         Role
	Tier         Tier
	System       string
	User         string
	ToolsEnabled bool
}

// Invoker is the abstract model-call capability the core depends on.
// Implementations own provider selection, retries and timeouts; the core
// only requires that a call either returns text or an *InvocationError.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// Embedder turns situation text into a vector in a fixed embedding space.
// Model identifies that space; stores refuse to rank across different models.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// InvocationError reports a failed model or tool call. The orchestrator
// wraps it with stage/round context before surfacing it.
type InvocationError struct {
	Role  Role
	Cause error
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invoking %s: %v", e.Role, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// EmbeddingError reports a failed embedding call.
type EmbeddingError struct {
	Cause error
}

func (e *EmbeddingError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("embedding failed: %v", e.Cause)
}

func (e *EmbeddingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
