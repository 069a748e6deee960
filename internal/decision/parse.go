package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/tkim9/upbit-autotrade/internal/store"
)

// decisionSchemaJSON is sent to the model as structured-output schema
// and used locally to validate whatever comes back.
const decisionSchemaJSON = `{
	"type": "object",
	"properties": {
		"decision": {"type": "string", "enum": ["buy", "sell", "hold"]},
		"confidence_score": {"type": "number", "minimum": 0, "maximum": 100},
		"reason": {"type": "string"}
	},
	"required": ["decision", "confidence_score", "reason"],
	"additionalProperties": false
}`

var decisionSchema = jsonschema.MustCompileString("decision.json", decisionSchemaJSON)

// ParseDecision extracts and validates the model's decision JSON. A
// hold is normalized to confidence 0 so downstream sizing never acts
// on it.
func ParseDecision(raw string) (Decision, error) {
	raw = stripCodeFence(raw)
	if !gjson.Valid(raw) {
		return Decision{}, fmt.Errorf("model output is not valid JSON")
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Decision{}, err
	}
	if err := decisionSchema.Validate(doc); err != nil {
		return Decision{}, fmt.Errorf("decision schema: %w", err)
	}

	parsed := gjson.Parse(raw)
	d := Decision{
		Action:     strings.ToLower(strings.TrimSpace(parsed.Get("decision").String())),
		Confidence: parsed.Get("confidence_score").Float(),
		Reason:     strings.TrimSpace(parsed.Get("reason").String()),
	}
	if d.Action == store.DecisionHold {
		d.Confidence = 0
	}
	return d, nil
}

// stripCodeFence tolerates models that wrap JSON in markdown fences
// despite structured output being requested.
func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	if idx := strings.LastIndex(raw, "```"); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.TrimSpace(raw)
}
