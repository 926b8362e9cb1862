package llm

import (
	"encoding/json"
	"strings"

	"github.com/clauseguard/clauseguard/internal/model"
)

const maxSummaryItems = 5

// parseAnalysis locates the single JSON object embedded in the raw completion
// text and coerces it into a strongly typed Analysis. The summary must be a
// string array (truncated to maxSummaryItems); each risk clause is shaped
// with explicit defaults so no field is ever left unset.
func parseAnalysis(raw string) (*Analysis, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, &ParseError{Reason: "no JSON object found in response"}
	}
	var envelope struct {
		Summary     json.RawMessage `json:"summary"`
		RiskClauses json.RawMessage `json:"riskClauses"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &envelope); err != nil {
		return nil, &ParseError{Reason: "malformed JSON object: " + err.Error()}
	}
	if len(envelope.Summary) == 0 {
		return nil, &ParseError{Reason: "missing summary array"}
	}
	var summary []string
	if err := json.Unmarshal(envelope.Summary, &summary); err != nil {
		return nil, &ParseError{Reason: "summary is not a string array"}
	}
	if len(summary) > maxSummaryItems {
		summary = summary[:maxSummaryItems]
	}
	if len(envelope.RiskClauses) == 0 {
		return nil, &ParseError{Reason: "missing riskClauses array"}
	}
	var rawClauses []struct {
		Text        string `json:"text"`
		RiskLevel   string `json:"riskLevel"`
		Explanation string `json:"explanation"`
		Section     string `json:"section"`
	}
	if err := json.Unmarshal(envelope.RiskClauses, &rawClauses); err != nil {
		return nil, &ParseError{Reason: "riskClauses is not an object array"}
	}
	clauses := make([]model.RiskClause, 0, len(rawClauses))
	for _, rc := range rawClauses {
		clauses = append(clauses, model.RiskClause{
			Text:        rc.Text,
			RiskLevel:   model.NormalizeRiskLevel(rc.RiskLevel),
			Explanation: rc.Explanation,
			Section:     rc.Section,
		})
	}
	return &Analysis{Summary: summary, RiskClauses: clauses}, nil
}
