package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision(`{"decision": "buy", "confidence_score": 72, "reason": "breakout with volume"}`)
	require.NoError(t, err)
	assert.Equal(t, "buy", d.Action)
	assert.InDelta(t, 72, d.Confidence, 1e-9)
	assert.Equal(t, "breakout with volume", d.Reason)
}

func TestParseDecisionNormalizesHoldConfidence(t *testing.T) {
	d, err := ParseDecision(`{"decision": "hold", "confidence_score": 55, "reason": "mixed signals"}`)
	require.NoError(t, err)
	assert.Equal(t, "hold", d.Action)
	assert.Zero(t, d.Confidence)
}

func TestParseDecisionStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"decision\": \"sell\", \"confidence_score\": 40, \"reason\": \"losing momentum\"}\n```"
	d, err := ParseDecision(raw)
	require.NoError(t, err)
	assert.Equal(t, "sell", d.Action)
}

func TestParseDecisionRejectsBadAction(t *testing.T) {
	_, err := ParseDecision(`{"decision": "short", "confidence_score": 90, "reason": "x"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestParseDecisionRejectsOutOfRangeConfidence(t *testing.T) {
	_, err := ParseDecision(`{"decision": "buy", "confidence_score": 140, "reason": "x"}`)
	require.Error(t, err)
}

func TestParseDecisionRejectsMissingFields(t *testing.T) {
	_, err := ParseDecision(`{"decision": "buy"}`)
	require.Error(t, err)
}

func TestParseDecisionRejectsNonJSON(t *testing.T) {
	_, err := ParseDecision("I would buy here.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}
