package decision

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// decisionSchema constrains the JSON shape models may emit as a final
// decision. Kept permissive on extra keys so providers can attach metadata.
const decisionSchema = `{
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": {"type": "string", "pattern": "(?i)^(buy|sell|hold)$"},
    "rationale": {"type": "string"},
    "reasoning": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 100}
  }
}`

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("decision.json", strings.NewReader(decisionSchema)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("decision.json")
	})
	return schemaCompiled, schemaErr
}

func validateDecisionJSON(raw string) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compiling decision schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("invalid decision json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("decision json rejected: %w", err)
	}
	return nil
}
