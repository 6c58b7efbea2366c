package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/truthlens/backend/internal/governance"
	"github.com/truthlens/backend/internal/metrics"
	"github.com/truthlens/backend/pkg/logger"
	"github.com/truthlens/backend/pkg/utils"
)

const (
	cacheKindHallucination = "hallucination"
	cacheKindExplain       = "explain"
)

// Store persists collaborator results by fingerprint. The redis client
// implements it.
type Store interface {
	GetJSON(ctx context.Context, kind, fingerprint string, v interface{}) (bool, error)
	SetJSON(ctx context.Context, kind, fingerprint string, v interface{}) error
}

// CachedHallucinationChecker reuses earlier verdicts for the same text,
// sample and day. Degraded results are never stored.
type CachedHallucinationChecker struct {
	next      HallucinationChecker
	store     Store
	namespace string
	now       func() time.Time
}

// NewCachedHallucinationChecker wraps next. namespace separates entries
// produced by different models.
func NewCachedHallucinationChecker(next HallucinationChecker, store Store, namespace string) *CachedHallucinationChecker {
	return &CachedHallucinationChecker{
		next:      next,
		store:     store,
		namespace: namespace,
		now:       time.Now,
	}
}

func (c *CachedHallucinationChecker) Analyze(ctx context.Context, text, contextSample string) governance.HallucinationResult {
	// The prompt carries today's date, so a verdict is only reusable within the day.
	fp := utils.Fingerprint(c.namespace, c.now().UTC().Format("2006-01-02"), text, contextSample)

	var cached governance.HallucinationResult
	if lookup(ctx, c.store, cacheKindHallucination, fp, &cached) {
		return cached
	}

	result := c.next.Analyze(ctx, text, contextSample)
	if !result.Degraded {
		save(ctx, c.store, cacheKindHallucination, fp, result)
	}
	return result
}

// CachedExplainer reuses explanations for identical metric summaries.
type CachedExplainer struct {
	next      Explainer
	store     Store
	namespace string
}

func NewCachedExplainer(next Explainer, store Store, namespace string) *CachedExplainer {
	return &CachedExplainer{next: next, store: store, namespace: namespace}
}

func (c *CachedExplainer) Explain(ctx context.Context, summary governance.MetricsSummary) governance.ExplainabilityResult {
	raw, err := json.Marshal(summary)
	if err != nil {
		return c.next.Explain(ctx, summary)
	}
	fp := utils.Fingerprint(c.namespace, string(raw))

	var cached governance.ExplainabilityResult
	if lookup(ctx, c.store, cacheKindExplain, fp, &cached) {
		return cached
	}

	result := c.next.Explain(ctx, summary)
	if !result.Degraded {
		save(ctx, c.store, cacheKindExplain, fp, result)
	}
	return result
}

// lookup treats store errors as misses.
func lookup(ctx context.Context, s Store, kind, fp string, v interface{}) bool {
	found, err := s.GetJSON(ctx, kind, fp, v)
	if err != nil {
		logger.Warn("Cache lookup failed", zap.String("kind", kind), zap.Error(err))
		found = false
	}
	if found {
		metrics.CacheHits.WithLabelValues(kind).Inc()
		return true
	}
	metrics.CacheMisses.WithLabelValues(kind).Inc()
	return false
}

func save(ctx context.Context, s Store, kind, fp string, v interface{}) {
	if err := s.SetJSON(ctx, kind, fp, v); err != nil {
		logger.Warn("Cache write failed", zap.String("kind", kind), zap.Error(err))
	}
}
