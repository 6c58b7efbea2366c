package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/truthlens/backend/internal/governance"
	"github.com/truthlens/backend/internal/stats"
	"github.com/truthlens/backend/pkg/logger"
)

const (
	defaultExplainScore  = 70
	degradedExplainScore = 60
)

const explainSystemPrompt = `You are an Explainable AI (XAI) engine. Generate a 'Trust & Explainability' report based on the raw audit metrics provided.

Respond with a single JSON object:
{
  "explainabilityScore": number 0-100 based on clarity of the data,
  "insights": ["insight 1", "insight 2", "insight 3"]
}`

type explainResponse struct {
	Score    *float64 `json:"explainabilityScore"`
	Insights []string `json:"insights"`
}

// Explainer turns raw audit metrics into short human-readable insights.
type Explainer struct {
	client *Client
}

func NewExplainer(client *Client) *Explainer {
	return &Explainer{client: client}
}

func (e *Explainer) Explain(ctx context.Context, summary governance.MetricsSummary) governance.ExplainabilityResult {
	raw, err := json.Marshal(summary)
	if err != nil {
		logger.Error("Failed to encode audit metrics", zap.Error(err))
		return DegradedExplainability()
	}

	resp, err := e.client.Complete(ctx, CompletionRequest{
		SystemPrompt: explainSystemPrompt,
		UserPrompt:   fmt.Sprintf("Raw audit metrics:\n%s", raw),
		JSON:         true,
	})
	if err != nil {
		logger.Error("Explainability analysis failed", zap.Error(err))
		return DegradedExplainability()
	}

	var parsed explainResponse
	if err := decodeJSON(resp.Content, &parsed); err != nil {
		logger.Error("Failed to parse explainability analysis", zap.Error(err))
		return DegradedExplainability()
	}

	result := governance.ExplainabilityResult{
		Score: defaultExplainScore,
	}
	if parsed.Score != nil {
		result.Score = stats.Clamp(*parsed.Score, 0, 100)
	}
	for _, insight := range parsed.Insights {
		if s := strings.TrimSpace(insight); s != "" {
			result.Insights = append(result.Insights, s)
		}
	}
	if len(result.Insights) == 0 {
		result.Insights = []string{"Data patterns analyzed."}
	}

	return result
}

// DegradedExplainability is the result reported when the model could not be reached.
func DegradedExplainability() governance.ExplainabilityResult {
	return governance.ExplainabilityResult{
		Score:    degradedExplainScore,
		Insights: []string{"Automated explanation unavailable due to connection error."},
		Degraded: true,
	}
}
