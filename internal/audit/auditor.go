// Package audit runs the full trust audit of a dataset and the AI output
// that describes it, and hands the signals to the governance gate.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/truthlens/backend/internal/dataset"
	"github.com/truthlens/backend/internal/drift"
	"github.com/truthlens/backend/internal/governance"
	"github.com/truthlens/backend/internal/metrics"
	"github.com/truthlens/backend/internal/quality"
	"github.com/truthlens/backend/pkg/logger"
)

var ErrNoDataset = errors.New("no dataset to audit")

// HallucinationChecker grades how well an AI output is grounded in a data sample.
// Implementations must not fail; they return a degraded result instead.
type HallucinationChecker interface {
	Analyze(ctx context.Context, text, contextSample string) governance.HallucinationResult
}

// Explainer produces human-readable insights about audit metrics.
type Explainer interface {
	Explain(ctx context.Context, summary governance.MetricsSummary) governance.ExplainabilityResult
}

// Stage names a step of a run, reported to Request.Progress.
type Stage string

const (
	StageAnalyzing   Stage = "analyzing"
	StageExplaining  Stage = "explaining"
	StageAggregating Stage = "aggregating"
	StageComplete    Stage = "complete"
)

type Request struct {
	Dataset  *dataset.Dataset
	AIOutput string
	// Progress, when set, is called as the run moves between stages.
	Progress func(Stage)
}

type Options struct {
	Policy      governance.Policy
	ContextRows int
	Now         func() time.Time
	NewID       func() string
}

type Auditor struct {
	quality       *quality.Analyzer
	drift         *drift.Analyzer
	hallucination HallucinationChecker
	explainer     Explainer
	aggregator    *governance.Aggregator
	contextRows   int
	now           func() time.Time
	newID         func() string
}

// NewAuditor wires the analyzers and collaborators into one pipeline. A zero
// Policy selects governance.DefaultPolicy.
func NewAuditor(hallucination HallucinationChecker, explainer Explainer, opts Options) *Auditor {
	if opts.Policy == (governance.Policy{}) {
		opts.Policy = governance.DefaultPolicy()
	}
	if opts.ContextRows <= 0 {
		opts.ContextRows = 15
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	return &Auditor{
		quality:       quality.NewAnalyzer(),
		drift:         drift.NewAnalyzer(),
		hallucination: hallucination,
		explainer:     explainer,
		aggregator:    governance.NewAggregator(opts.Policy),
		contextRows:   opts.ContextRows,
		now:           opts.Now,
		newID:         opts.NewID,
	}
}

// Run audits one dataset. Collaborator failures degrade the report rather
// than failing it; an error means the run was abandoned or the gate
// received a signal it cannot score.
func (a *Auditor) Run(ctx context.Context, req Request) (*governance.AuditReport, error) {
	if req.Dataset == nil {
		return nil, ErrNoDataset
	}

	start := time.Now()
	id := a.newID()
	ds := req.Dataset
	log := logger.GetLogger().With(zap.String("audit_id", id))

	log.Info("Audit started",
		zap.String("label", ds.Label()),
		zap.Int("rows", ds.Len()),
		zap.Int("columns", len(ds.Keys())),
		zap.Int("text_length", len(req.AIOutput)),
	)

	report, err := a.run(ctx, req, id, log)
	if err != nil {
		metrics.AuditErrors.Inc()
		log.Error("Audit failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	metrics.AuditDuration.Observe(time.Since(start).Seconds())
	metrics.AuditsTotal.WithLabelValues(string(report.RiskBadge)).Inc()
	metrics.DriftedFeatures.Observe(float64(len(report.Drift.DriftedFeatures)))
	if report.OverallTrustScore != nil {
		metrics.TrustScore.Observe(float64(*report.OverallTrustScore))
	}
	for _, f := range report.CriticalFlags {
		metrics.VetoTotal.WithLabelValues(string(f)).Inc()
	}

	trust := zap.Skip()
	if report.OverallTrustScore != nil {
		trust = zap.Int("trust_score", *report.OverallTrustScore)
	}
	log.Info("Audit completed",
		trust,
		zap.String("badge", string(report.RiskBadge)),
		zap.Any("flags", report.CriticalFlags),
		zap.Duration("elapsed", time.Since(start)),
	)

	return report, nil
}

func (a *Auditor) run(ctx context.Context, req Request, id string, log *zap.Logger) (*governance.AuditReport, error) {
	ds := req.Dataset
	progress := req.Progress
	if progress == nil {
		progress = func(Stage) {}
	}

	var (
		dq   quality.Metrics
		dr   drift.Report
		hall governance.HallucinationResult
	)

	progress(StageAnalyzing)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dq = a.quality.Analyze(ds)
		dr = a.drift.Analyze(ds)
		return nil
	})
	g.Go(func() error {
		sample, err := ds.ContextSample(a.contextRows)
		if err != nil {
			return fmt.Errorf("failed to build context sample: %w", err)
		}
		hall = a.hallucination.Analyze(gctx, req.AIOutput, sample)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hall.Degraded {
		metrics.CollaboratorFallback.WithLabelValues("hallucination").Inc()
		log.Warn("Hallucination check degraded")
	}

	log.Debug("Signals computed",
		zap.Int("quality_score", dq.Score),
		zap.Int("drift_score", dr.Score),
		zap.Float64("hallucination_score", hall.Score),
	)

	progress(StageExplaining)
	explain := a.explainer.Explain(ctx, governance.MetricsSummary{
		DataQuality:        dq,
		Drift:              dr,
		HallucinationScore: hall.Score,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if explain.Degraded {
		metrics.CollaboratorFallback.WithLabelValues("explainability").Inc()
		log.Warn("Explainability degraded")
	}

	progress(StageAggregating)
	verdict, err := a.aggregator.Aggregate(governance.Inputs{
		Quality:        dq,
		Drift:          dr,
		Hallucination:  hall,
		Explainability: explain,
		RowCount:       ds.Len(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit signals: %w", err)
	}

	progress(StageComplete)
	return &governance.AuditReport{
		ID:                id,
		FileLabel:         ds.Label(),
		OverallTrustScore: verdict.TrustScore,
		RiskBadge:         verdict.Badge,
		CriticalFlags:     verdict.Flags,
		DataQuality:       dq,
		Drift:             dr,
		Hallucination:     hall,
		Explainability:    explain,
		Timestamp:         a.now().UTC(),
	}, nil
}
