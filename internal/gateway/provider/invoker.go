package provider

import (
	"context"
	"fmt"

	"council/internal/agent"
	"council/internal/logger"
)

// Chatter is the narrow surface TierInvoker needs from a model client.
type Chatter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// TierInvoker routes requests to a cheap fast model or a slower deep
// model depending on the requested tier. Analyst and debate turns run
// on the quick model, the final synthesis on the deep one.
type TierInvoker struct {
	quick Chatter
	deep  Chatter
}

func NewTierInvoker(quick, deep Chatter) (*TierInvoker, error) {
	if quick == nil {
		return nil, fmt.Errorf("quick model client is required")
	}
	if deep == nil {
		deep = quick
	}
	return &TierInvoker{quick: quick, deep: deep}, nil
}

func (t *TierInvoker) Invoke(ctx context.Context, req agent.Request) (string, error) {
	client := t.quick
	if req.Tier == agent.TierDeep {
		client = t.deep
	}
	logger.LogLLMRequest(string(req.Role), string(req.Tier), req.System, req.User)
	out, err := client.Complete(ctx, req.System, req.User)
	if err != nil {
		return "", &agent.InvocationError{Role: req.Role, Cause: err}
	}
	logger.LogLLMResponse(string(req.Role), string(req.Tier), out)
	return out, nil
}
