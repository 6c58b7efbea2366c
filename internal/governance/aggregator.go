package governance

import (
	"errors"
	"fmt"
	"math"

	"github.com/truthlens/backend/internal/drift"
	"github.com/truthlens/backend/internal/quality"
	"github.com/truthlens/backend/internal/stats"
)

// ErrInvalidInput reports a signal the gate cannot reason about, such as a
// NaN or out-of-range score. It ends the audit run.
var ErrInvalidInput = errors.New("invalid governance input")

type Weights struct {
	Quality        float64
	Drift          float64
	Hallucination  float64
	Explainability float64
}

// Policy holds the weights and veto thresholds of the gate.
type Policy struct {
	Weights           Weights
	MinRows           int
	HallucinationVeto float64
	HallucinationCap  float64
	DriftVeto         float64
	DriftCap          float64
	SafeScore         float64
	ReviewScore       float64
}

func DefaultPolicy() Policy {
	return Policy{
		Weights: Weights{
			Quality:        0.35,
			Drift:          0.25,
			Hallucination:  0.30,
			Explainability: 0.10,
		},
		MinRows:           25,
		HallucinationVeto: 50,
		HallucinationCap:  40,
		DriftVeto:         60,
		DriftCap:          60,
		SafeScore:         80,
		ReviewScore:       50,
	}
}

type Inputs struct {
	Quality        quality.Metrics
	Drift          drift.Report
	Hallucination  HallucinationResult
	Explainability ExplainabilityResult
	RowCount       int
}

// Verdict is the gate's decision. WeightedScore is the uncapped blend,
// kept for logging; TrustScore is what the report carries.
type Verdict struct {
	TrustScore    *int
	Badge         RiskBadge
	Flags         []CriticalFlag
	WeightedScore float64
}

type Aggregator struct {
	policy Policy
	rules  []rule
}

func NewAggregator(policy Policy) *Aggregator {
	return &Aggregator{
		policy: policy,
		rules: []rule{
			insufficientData,
			hallucinationVeto,
			severeDrift,
			scoreBands,
		},
	}
}

func (a *Aggregator) Policy() Policy {
	return a.policy
}

// evaluation is the in-progress verdict the rules act on.
type evaluation struct {
	policy Policy
	in     Inputs
	trust  float64
	absent bool
	badge  RiskBadge
	flags  []CriticalFlag
}

// A rule inspects and may tighten the evaluation. Returning true ends the chain.
type rule func(e *evaluation) (stop bool)

func (a *Aggregator) Aggregate(in Inputs) (Verdict, error) {
	if err := validate(in); err != nil {
		return Verdict{}, err
	}

	w := a.policy.Weights
	weighted := w.Quality*float64(in.Quality.Score) +
		w.Drift*float64(in.Drift.Score) +
		w.Hallucination*in.Hallucination.Score +
		w.Explainability*in.Explainability.Score

	e := &evaluation{
		policy: a.policy,
		in:     in,
		trust:  weighted,
		badge:  BadgeSafe,
		flags:  []CriticalFlag{},
	}
	for _, r := range a.rules {
		if r(e) {
			break
		}
	}

	v := Verdict{
		Badge:         e.badge,
		Flags:         e.flags,
		WeightedScore: weighted,
	}
	if !e.absent {
		score := int(stats.Round(e.trust, 0))
		v.TrustScore = &score
	}
	return v, nil
}

func insufficientData(e *evaluation) bool {
	if e.in.RowCount >= e.policy.MinRows {
		return false
	}
	e.flags = append(e.flags, FlagInsufficientData)
	e.absent = true
	e.badge = BadgeInsufficient
	return true
}

func hallucinationVeto(e *evaluation) bool {
	if e.in.Hallucination.Score >= e.policy.HallucinationVeto {
		return false
	}
	e.flags = append(e.flags, FlagHighHallucinationRisk)
	e.trust = math.Min(e.trust, e.policy.HallucinationCap)
	e.badge = BadgeUnsafe
	return false
}

func severeDrift(e *evaluation) bool {
	if float64(e.in.Drift.Score) >= e.policy.DriftVeto {
		return false
	}
	e.flags = append(e.flags, FlagSevereDrift)
	e.trust = math.Min(e.trust, e.policy.DriftCap)
	if e.badge != BadgeUnsafe {
		e.badge = BadgeReview
	}
	return false
}

// scoreBands derives the badge from the weighted score when no veto fired.
func scoreBands(e *evaluation) bool {
	if len(e.flags) > 0 {
		return true
	}
	switch {
	case e.trust >= e.policy.SafeScore:
		e.badge = BadgeSafe
	case e.trust >= e.policy.ReviewScore:
		e.badge = BadgeReview
	default:
		e.badge = BadgeUnsafe
	}
	return true
}

func validate(in Inputs) error {
	if in.RowCount < 0 {
		return fmt.Errorf("%w: negative row count %d", ErrInvalidInput, in.RowCount)
	}
	scores := []struct {
		name  string
		value float64
	}{
		{"quality", float64(in.Quality.Score)},
		{"drift", float64(in.Drift.Score)},
		{"hallucination", in.Hallucination.Score},
		{"explainability", in.Explainability.Score},
	}
	for _, s := range scores {
		if math.IsNaN(s.value) || s.value < 0 || s.value > 100 {
			return fmt.Errorf("%w: %s score %v outside [0,100]", ErrInvalidInput, s.name, s.value)
		}
	}
	return nil
}
