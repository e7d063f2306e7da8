package debate

import (
	"context"
	"fmt"
	"strings"

	"council/internal/agent"
	"council/internal/logger"
)

// Config fixes a debate's shape up front: the adversarial roles in turn
// order, the judge that synthesizes the resolution, and the hard round cap.
// MaxRounds is the sole termination control; there is no consensus early
// exit, so round count stays a first-class tunable.
type Config struct {
	MaxRounds int
	Roles     []agent.Role
	Tier      agent.Tier
	Judge     agent.Role
	JudgeTier agent.Tier
}

func (c Config) validate() error {
	if c.MaxRounds < 1 {
		return fmt.Errorf("debate needs max_rounds >= 1, got %d", c.MaxRounds)
	}
	if len(c.Roles) < 2 {
		return fmt.Errorf("debate needs at least 2 roles, got %d", len(c.Roles))
	}
	if c.Judge == "" {
		return fmt.Errorf("debate needs a judge role")
	}
	return nil
}

// Turn is one contribution to a transcript. Rounds are 1-based.
type Turn struct {
	Round int        `json:"round"`
	Role  agent.Role `json:"role"`
	Text  string     `json:"text"`
}

// Failure wraps an invocation error with the round/role it happened in.
type Failure struct {
	Round int
	Role  agent.Role
	Cause error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("debate round %d, role %s: %v", f.Round, f.Role, f.Cause)
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Cause
}

// PromptSource supplies the per-role system prompt.
type PromptSource interface {
	System(role agent.Role) string
}

// Controller runs bounded alternating-stance debates. One controller serves
// both the bull/bear research debate and the risk-adjustment debate; only
// the Config differs.
type Controller struct {
	invoker agent.Invoker
	prompts PromptSource
}

func NewController(invoker agent.Invoker, prompts PromptSource) *Controller {
	return &Controller{invoker: invoker, prompts: prompts}
}

// Run executes the configured rounds over sharedContext and returns the
// transcript plus the judge's resolution. Within a round, roles speak in
// configured order and each turn sees every prior turn, so later roles rebut
// strictly-earlier ones and the transcript has a total order. Any failed
// invocation aborts the debate; no partial resolution is ever produced.
func (c *Controller) Run(ctx context.Context, cfg Config, sharedContext string) ([]Turn, string, error) {
	if err := cfg.validate(); err != nil {
		return nil, "", err
	}
	transcript := make([]Turn, 0, cfg.MaxRounds*len(cfg.Roles))

	for round := 1; round <= cfg.MaxRounds; round++ {
		for _, role := range cfg.Roles {
			if err := ctx.Err(); err != nil {
				return nil, "", &Failure{Round: round, Role: role, Cause: err}
			}
			text, err := c.invoker.Invoke(ctx, agent.Request{
				Role:   role,
				Tier:   cfg.Tier,
				System: c.prompts.System(role),
				User:   turnPrompt(sharedContext, transcript, round, role),
			})
			if err != nil {
				return nil, "", &Failure{Round: round, Role: role, Cause: err}
			}
			transcript = append(transcript, Turn{Round: round, Role: role, Text: text})
			logger.Debugf("debate round %d/%d: %s spoke (%d chars)",
				round, cfg.MaxRounds, role, len(text))
		}
	}

	resolution, err := c.invoker.Invoke(ctx, agent.Request{
		Role:   cfg.Judge,
		Tier:   cfg.JudgeTier,
		System: c.prompts.System(cfg.Judge),
		User:   judgePrompt(sharedContext, transcript),
	})
	if err != nil {
		return nil, "", &Failure{Round: cfg.MaxRounds, Role: cfg.Judge, Cause: err}
	}
	return transcript, resolution, nil
}

// RenderTranscript flattens turns into the text block fed to debaters,
// judges and downstream stages.
func RenderTranscript(transcript []Turn) string {
	if len(transcript) == 0 {
		return "(no prior turns)"
	}
	var b strings.Builder
	for _, turn := range transcript {
		fmt.Fprintf(&b, "[round %d] %s: %s\n", turn.Round, turn.Role, turn.Text)
	}
	return b.String()
}

func turnPrompt(sharedContext string, transcript []Turn, round int, role agent.Role) string {
	var b strings.Builder
	b.WriteString("## Shared context\n")
	b.WriteString(sharedContext)
	b.WriteString("\n\n## Debate so far\n")
	b.WriteString(RenderTranscript(transcript))
	fmt.Fprintf(&b, "\nYou are %s speaking in round %d. Respond to the prior turns and argue your stance.\n", role, round)
	return b.String()
}

func judgePrompt(sharedContext string, transcript []Turn) string {
	var b strings.Builder
	b.WriteString("## Shared context\n")
	b.WriteString(sharedContext)
	b.WriteString("\n\n## Full debate transcript\n")
	b.WriteString(RenderTranscript(transcript))
	b.WriteString("\nWeigh both sides and produce a single decisive resolution.\n")
	return b.String()
}
