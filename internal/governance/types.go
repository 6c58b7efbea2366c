package governance

import (
	"strings"
	"time"

	"github.com/truthlens/backend/internal/drift"
	"github.com/truthlens/backend/internal/quality"
)

// CriticalFlag is a veto signal raised by the governance gate.
type CriticalFlag string

const (
	FlagInsufficientData      CriticalFlag = "INSUFFICIENT_DATA"
	FlagHighHallucinationRisk CriticalFlag = "HIGH_HALLUCINATION_RISK"
	FlagSevereDrift           CriticalFlag = "SEVERE_DRIFT"
)

// RiskBadge is the final verdict. Exactly one applies to a report.
type RiskBadge string

const (
	BadgeSafe         RiskBadge = "SAFE"
	BadgeReview       RiskBadge = "REVIEW"
	BadgeUnsafe       RiskBadge = "UNSAFE"
	BadgeInsufficient RiskBadge = "INSUFFICIENT"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ParseRiskLevel maps free-form model output onto a RiskLevel, defaulting to Medium.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow
	case "high", "critical":
		return RiskHigh
	default:
		return RiskMedium
	}
}

type HallucinationFlag struct {
	Sentence string    `json:"sentence"`
	Reason   string    `json:"reason"`
	Risk     RiskLevel `json:"risk"`
}

// HallucinationResult is produced by the hallucination collaborator.
// Degraded marks the fallback returned when the collaborator failed.
type HallucinationResult struct {
	Score        float64             `json:"score"`
	Flags        []HallucinationFlag `json:"flags"`
	AnalysisText string              `json:"analysisText"`
	Degraded     bool                `json:"degraded,omitempty"`
}

// ExplainabilityResult is produced by the explainability collaborator.
type ExplainabilityResult struct {
	Score    float64  `json:"score"`
	Insights []string `json:"insights"`
	Degraded bool     `json:"degraded,omitempty"`
}

// AuditReport is the immutable outcome of one audit run. OverallTrustScore
// is nil exactly when RiskBadge is INSUFFICIENT.
type AuditReport struct {
	ID                string               `json:"id"`
	FileLabel         string               `json:"fileLabel"`
	OverallTrustScore *int                 `json:"overallTrustScore"`
	RiskBadge         RiskBadge            `json:"riskBadge"`
	CriticalFlags     []CriticalFlag       `json:"criticalFlags"`
	DataQuality       quality.Metrics      `json:"dataQuality"`
	Drift             drift.Report         `json:"drift"`
	Hallucination     HallucinationResult  `json:"hallucination"`
	Explainability    ExplainabilityResult `json:"explainability"`
	Timestamp         time.Time            `json:"timestamp"`
}

// MetricsSummary is what the explainability collaborator is asked to explain.
type MetricsSummary struct {
	DataQuality        quality.Metrics `json:"dataQuality"`
	Drift              drift.Report    `json:"drift"`
	HallucinationScore float64         `json:"hallucinationScore"`
}
