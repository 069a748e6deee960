package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/tkim9/upbit-autotrade/internal/gateway/provider"
	"github.com/tkim9/upbit-autotrade/internal/logger"
	"github.com/tkim9/upbit-autotrade/internal/store"
	"github.com/tkim9/upbit-autotrade/internal/store/tracelog"
)

const generatorSystemPrompt = "You are an expert cryptocurrency trading analyst. " +
	"Provide thoughtful, analytical reflections on trading decisions. " +
	"Be specific about what worked and what didn't, and extract actionable lessons."

var reflectionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"reflection": {"type": "string"}
	},
	"required": ["reflection"],
	"additionalProperties": false
}`)

// Generator produces the natural-language reflection text for an
// evaluated trade.
type Generator struct {
	provider provider.ModelProvider
	trace    *tracelog.Store
}

// NewGenerator wires a model provider; trace may be nil to skip LLM
// call persistence.
func NewGenerator(p provider.ModelProvider, trace *tracelog.Store) *Generator {
	return &Generator{provider: p, trace: trace}
}

// Reflect asks the model to review one trade against its outcome. The
// model is forced into {"reflection": string} structured output; any
// transport or parse failure surfaces as an error so the caller can
// leave the row unreflected and retry later.
func (g *Generator) Reflect(ctx context.Context, trade store.TradeDecision, win FutureWindow, outcome Outcome) (string, error) {
	prompt := buildReflectionPrompt(trade, win, outcome)
	logger.LogLLMRequest("reflection", generatorSystemPrompt, prompt)

	raw, callErr := g.provider.Call(ctx, provider.Request{
		SystemPrompt: generatorSystemPrompt,
		UserPrompt:   prompt,
		Schema:       &provider.ResponseSchema{Name: "reflection_output", Schema: reflectionSchema},
	})
	g.appendTrace(ctx, trade.CoinName, prompt, raw, callErr)
	if callErr != nil {
		return "", fmt.Errorf("generating reflection: %w", callErr)
	}
	logger.LogLLMResponse("reflection", raw)

	field := gjson.Get(raw, "reflection")
	if !field.Exists() || strings.TrimSpace(field.String()) == "" {
		return "", fmt.Errorf("generating reflection: model output missing reflection field")
	}
	return field.String(), nil
}

func (g *Generator) appendTrace(ctx context.Context, coin, prompt, raw string, callErr error) {
	if g.trace == nil {
		return
	}
	rec := tracelog.Record{
		TraceID:    uuid.NewString(),
		Timestamp:  time.Now().Unix(),
		Stage:      "reflection",
		ProviderID: g.provider.ID(),
		Coin:       coin,
		System:     generatorSystemPrompt,
		User:       prompt,
		RawOutput:  raw,
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	if _, err := g.trace.Append(ctx, rec); err != nil {
		logger.Warnf("[reflection] trace append failed: %v", err)
	}
}

func buildReflectionPrompt(trade store.TradeDecision, win FutureWindow, outcome Outcome) string {
	var sb strings.Builder

	summary := ""
	if !win.Empty() {
		var ps strings.Builder
		fmt.Fprintf(&ps, "\nPrice movement over %d hours:", win.Hours())
		for i, c := range win.Candles {
			if i >= 5 {
				fmt.Fprintf(&ps, "\n  ... (%d more hours)", win.Hours()-5)
				break
			}
			fmt.Fprintf(&ps, "\n  Hour %d: Close %.2f KRW", i+1, c.Close)
		}
		summary = ps.String()
	}

	fmt.Fprintf(&sb, `You are an expert trading analyst reviewing a past trading decision. Provide a thoughtful reflection on what happened.

### Original Trade Decision
- Coin: %s
- Decision: %s
- Trade Price: %.2f KRW
- Confidence Score: %.0f%%
- Timestamp: %s
- Reasoning: %s

### What Actually Happened
- Result: %s
- Profit/Loss: %.2f%%
- Description: %s
%s

### Your Task
Reflect on this trade decision. Consider:
1. **Decision Quality**: Was the reasoning sound? Did it align with good trading principles?
2. **Outcome Analysis**: What factors led to this outcome? Were there signals that were correctly identified or missed?
3. **Confidence Calibration**: Was the confidence score appropriate given the market conditions?
4. **Key Lessons**: What can be learned from this trade for future decisions?

Be specific, analytical, and constructive. Focus on actionable insights.`,
		trade.CoinName,
		strings.ToUpper(trade.Decision),
		trade.CoinKRWPrice,
		trade.ConfidenceScore,
		trade.Timestamp.Format(time.RFC3339),
		trade.Reason,
		strings.ToUpper(outcome.ResultType),
		outcome.ProfitLoss*100,
		outcome.Description,
		summary,
	)
	return sb.String()
}
