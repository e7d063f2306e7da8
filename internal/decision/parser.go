package decision

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const proposalMarker = "FINAL TRANSACTION PROPOSAL"

// Extract turns the final aggregation stage's raw text into a Decision.
// A well-formed JSON object (bare or fenced) wins; otherwise the text is
// scanned for an explicit proposal marker, then for the last standalone
// BUY/SELL/HOLD mention. Extraction is fully deterministic: the same raw
// text always yields the same Decision.
func Extract(raw string) (Decision, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Decision{}, fmt.Errorf("empty decision text")
	}
	if block, ok := extractJSONObject(raw); ok {
		if d, err := fromJSON(block, raw); err == nil {
			return d, nil
		}
	}
	action, ok := scanSignal(raw)
	if !ok {
		return Decision{}, fmt.Errorf("no BUY/SELL/HOLD signal in decision text")
	}
	return Decision{Action: action, Rationale: raw}, nil
}

func fromJSON(block, raw string) (Decision, error) {
	if err := validateDecisionJSON(block); err != nil {
		return Decision{}, err
	}
	parsed := gjson.Parse(block)
	action, err := ParseAction(parsed.Get("action").String())
	if err != nil {
		return Decision{}, err
	}
	rationale := strings.TrimSpace(parsed.Get("rationale").String())
	if rationale == "" {
		rationale = strings.TrimSpace(parsed.Get("reasoning").String())
	}
	if rationale == "" {
		rationale = raw
	}
	d := Decision{Action: action, Rationale: rationale}
	if conf := parsed.Get("confidence"); conf.Exists() {
		v := conf.Float()
		// Models emit either 0-1 or 0-100 scales.
		if v > 1 {
			v /= 100
		}
		d = d.WithConfidence(v)
	}
	return d, nil
}

// extractJSONObject finds the first balanced JSON object, preferring the
// content of a ``` fence when one is present.
func extractJSONObject(raw string) (string, bool) {
	const fence = "```"
	if start := strings.Index(raw, fence); start != -1 {
		rest := raw[start+len(fence):]
		if end := strings.Index(rest, fence); end != -1 {
			block := strings.TrimLeft(rest[:end], "\r\n")
			if idx := strings.Index(block, "\n"); idx != -1 {
				first := strings.TrimSpace(block[:idx])
				if first != "" && !strings.Contains(first, "{") {
					block = block[idx+1:]
				}
			}
			if obj, ok := balancedObject(block); ok {
				return obj, true
			}
		}
	}
	return balancedObject(raw)
}

func balancedObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			switch ch {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// scanSignal picks the action from free text. The explicit proposal marker
// ("FINAL TRANSACTION PROPOSAL: **BUY**") takes precedence; otherwise the
// last standalone mention wins, so a closing verdict beats earlier debate.
func scanSignal(raw string) (Action, bool) {
	upper := strings.ToUpper(raw)
	if idx := strings.LastIndex(upper, proposalMarker); idx != -1 {
		if action, ok := firstToken(upper[idx+len(proposalMarker):]); ok {
			return action, true
		}
	}
	var (
		found  Action
		foundAt = -1
	)
	for _, action := range []Action{ActionBuy, ActionSell, ActionHold} {
		if at := lastStandalone(upper, string(action)); at > foundAt {
			found, foundAt = action, at
		}
	}
	if foundAt == -1 {
		return "", false
	}
	return found, true
}

func firstToken(text string) (Action, bool) {
	var (
		best   Action
		bestAt = -1
	)
	for _, action := range []Action{ActionBuy, ActionSell, ActionHold} {
		at := strings.Index(text, string(action))
		if at == -1 || !standaloneAt(text, string(action), at) {
			continue
		}
		if bestAt == -1 || at < bestAt {
			best, bestAt = action, at
		}
	}
	if bestAt == -1 {
		return "", false
	}
	return best, true
}

func lastStandalone(text, word string) int {
	for at := strings.LastIndex(text, word); at != -1; at = strings.LastIndex(text[:at], word) {
		if standaloneAt(text, word, at) {
			return at
		}
		if at == 0 {
			break
		}
	}
	return -1
}

func standaloneAt(text, word string, at int) bool {
	if at > 0 && isWordByte(text[at-1]) {
		return false
	}
	end := at + len(word)
	if end < len(text) && isWordByte(text[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
