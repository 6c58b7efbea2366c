package governance

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truthlens/backend/internal/drift"
	"github.com/truthlens/backend/internal/quality"
)

func inputs(rows, q, d int, h, x float64) Inputs {
	return Inputs{
		Quality:        quality.Metrics{Score: q, TotalRows: rows},
		Drift:          drift.Report{Score: d, DriftedFeatures: []drift.Metric{}},
		Hallucination:  HallucinationResult{Score: h},
		Explainability: ExplainabilityResult{Score: x},
		RowCount:       rows,
	}
}

func intPtr(v int) *int { return &v }

func TestAggregate(t *testing.T) {
	testCases := []struct {
		name      string
		in        Inputs
		wantScore *int
		wantBadge RiskBadge
		wantFlags []CriticalFlag
	}{
		{
			name:      "clean batch is safe",
			in:        inputs(30, 100, 100, 90, 80),
			wantScore: intPtr(95),
			wantBadge: BadgeSafe,
			wantFlags: []CriticalFlag{},
		},
		{
			name:      "too few rows is terminal",
			in:        inputs(24, 100, 10, 10, 100),
			wantScore: nil,
			wantBadge: BadgeInsufficient,
			wantFlags: []CriticalFlag{FlagInsufficientData},
		},
		{
			name:      "hallucination veto caps at 40",
			in:        inputs(25, 100, 100, 49, 100),
			wantScore: intPtr(40),
			wantBadge: BadgeUnsafe,
			wantFlags: []CriticalFlag{FlagHighHallucinationRisk},
		},
		{
			name:      "severe drift caps at 60",
			in:        inputs(40, 100, 59, 100, 100),
			wantScore: intPtr(60),
			wantBadge: BadgeReview,
			wantFlags: []CriticalFlag{FlagSevereDrift},
		},
		{
			name:      "drift never downgrades unsafe",
			in:        inputs(40, 100, 0, 0, 100),
			wantScore: intPtr(40),
			wantBadge: BadgeUnsafe,
			wantFlags: []CriticalFlag{FlagHighHallucinationRisk, FlagSevereDrift},
		},
		{
			name:      "cap never raises a lower score",
			in:        inputs(40, 0, 59, 60, 0),
			wantScore: intPtr(33),
			wantBadge: BadgeReview,
			wantFlags: []CriticalFlag{FlagSevereDrift},
		},
		{
			name:      "review band without vetoes",
			in:        inputs(40, 60, 60, 60, 60),
			wantScore: intPtr(60),
			wantBadge: BadgeReview,
			wantFlags: []CriticalFlag{},
		},
		{
			name:      "unsafe band without vetoes",
			in:        inputs(40, 0, 60, 50, 0),
			wantScore: intPtr(30),
			wantBadge: BadgeUnsafe,
			wantFlags: []CriticalFlag{},
		},
		{
			name:      "degraded collaborators are ordinary input",
			in:        inputs(100, 100, 100, 50, 60),
			wantScore: intPtr(81),
			wantBadge: BadgeSafe,
			wantFlags: []CriticalFlag{},
		},
	}

	agg := NewAggregator(DefaultPolicy())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := agg.Aggregate(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.wantScore, v.TrustScore)
			assert.Equal(t, tc.wantBadge, v.Badge)
			assert.Equal(t, tc.wantFlags, v.Flags)
		})
	}
}

func TestAggregatePerfectHallucinationStillInsufficient(t *testing.T) {
	v, err := NewAggregator(DefaultPolicy()).Aggregate(inputs(20, 100, 100, 100, 100))
	require.NoError(t, err)
	assert.Nil(t, v.TrustScore)
	assert.Equal(t, BadgeInsufficient, v.Badge)
	assert.InDelta(t, 100, v.WeightedScore, 1e-9)
}

func TestAggregateRejectsInvalidInput(t *testing.T) {
	agg := NewAggregator(DefaultPolicy())

	_, err := agg.Aggregate(inputs(30, 100, 100, math.NaN(), 80))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = agg.Aggregate(inputs(30, 100, 100, 90, 120))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = agg.Aggregate(inputs(-1, 100, 100, 90, 80))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAggregateProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	agg := NewAggregator(DefaultPolicy())

	for i := 0; i < 2000; i++ {
		in := inputs(
			rng.Intn(60),
			rng.Intn(101),
			rng.Intn(101),
			float64(rng.Intn(101)),
			float64(rng.Intn(101)),
		)
		v, err := agg.Aggregate(in)
		require.NoError(t, err)

		assert.Equal(t, v.Badge == BadgeInsufficient, v.TrustScore == nil)

		switch {
		case in.RowCount < 25:
			assert.Equal(t, BadgeInsufficient, v.Badge)
			assert.Equal(t, []CriticalFlag{FlagInsufficientData}, v.Flags)
		case in.Hallucination.Score < 50:
			assert.Equal(t, BadgeUnsafe, v.Badge)
			assert.LessOrEqual(t, *v.TrustScore, 40)
		case in.Drift.Score < 60:
			assert.Equal(t, BadgeReview, v.Badge)
			assert.LessOrEqual(t, *v.TrustScore, 60)
		default:
			assert.Empty(t, v.Flags)
		}

		if v.TrustScore != nil {
			assert.LessOrEqual(t, float64(*v.TrustScore), math.Round(v.WeightedScore))
		}
	}
}

func TestParseRiskLevel(t *testing.T) {
	assert.Equal(t, RiskHigh, ParseRiskLevel(" HIGH "))
	assert.Equal(t, RiskLow, ParseRiskLevel("low"))
	assert.Equal(t, RiskMedium, ParseRiskLevel("whatever"))
}
