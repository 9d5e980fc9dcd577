package reasoner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joblens-inc/joblens-engine/pkg/models"
)

// parseReport extracts the report object from a raw model response. Models
// wrap JSON in markdown fences or preamble text often enough that plain
// unmarshaling is not an option.
func parseReport(raw string) (*models.Report, error) {
	jsonStr, ok := extractObject(raw)
	if !ok {
		return nil, newError(ErrorTypeValidation, "no JSON object in response", false, nil)
	}

	var report models.Report
	if err := json.Unmarshal([]byte(jsonStr), &report); err != nil {
		return nil, newError(ErrorTypeValidation, "response is not a report", false, err)
	}
	if err := models.ValidateReport(&report); err != nil {
		return nil, newError(ErrorTypeValidation, "response violates report schema", false, err)
	}
	return &report, nil
}

// extractObject finds the first balanced top-level JSON object, tracking
// string and escape state so braces inside strings don't confuse the depth
// count.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}

// buildPrompt renders the aggregates as the user message. The system
// message pins the output schema; the aggregates go over as plain JSON.
func buildPrompt(agg *models.Aggregates) (string, error) {
	payload, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal aggregates: %w", err)
	}
	return fmt.Sprintf("Aggregated activity for the last %d days:\n\n%s\n\nProduce the snapshot report JSON now.", agg.WindowDays, payload), nil
}

const systemPrompt = `You score small-business activity snapshots from pre-aggregated data.
You receive aggregate distributions only - never raw customer records.

Respond with a single JSON object and nothing else, in exactly this shape:
{
  "kind": "snapshot",
  "window_days": <number>,
  "signals": {"estimate_count": <int>, "invoice_count": <int>, "demand_trend": "up"|"down"|"flat"},
  "scores": {"demand_signal": <0-100>, "cash_signal": <0-100>, "decision_latency": <0-100>, "capacity_pressure": <0-100>, "confidence": "low"|"medium"|"high"},
  "findings": [<exactly 4 short statements: demand rhythm, deal-size mix, decision speed, job-mix signal>],
  "next_steps": [<1-3 concrete actions>],
  "disclaimers": [<at least one disclaimer about directional, windowed data>]
}

Scores are integers in [0,100]. window_days must echo the input. Do not invent data that is not in the aggregates.`
