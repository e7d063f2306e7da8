package decision

import (
	"fmt"
	"strings"
)

// Action is the decision label the pipeline emits.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction normalizes a raw action label.
func ParseAction(raw string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY":
		return ActionBuy, nil
	case "SELL":
		return ActionSell, nil
	case "HOLD":
		return ActionHold, nil
	}
	return "", fmt.Errorf("unknown action %q", raw)
}

// Decision is the immutable final output of one run. Confidence is optional
// because not every model emits one; when present it is clamped to [0,1].
type Decision struct {
	Action     Action   `json:"action"`
	Rationale  string   `json:"rationale,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// WithConfidence returns a copy carrying the clamped confidence value.
func (d Decision) WithConfidence(v float64) Decision {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	d.Confidence = &v
	return d
}
