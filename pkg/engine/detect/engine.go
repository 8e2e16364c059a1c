package detect

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wastelens/wastelens/pkg/store"
)

// defaultCacheKey keys the single whole-inventory scan.
const defaultCacheKey = "default"

// Engine runs the scenario rules over the inventory. Safe for concurrent
// use; the only shared mutable state is the scan cache.
type Engine struct {
	store  store.Store
	rules  []Rule
	cache  *ScanCache
	logger *slog.Logger

	// exclude drops detections matching operator exclusion policies.
	// Applied before caching, so cached results are already filtered.
	exclude func(Detection) bool

	treatMissingMetricsAsIdle bool

	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the default rule set.
func WithRules(rules []Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithCache replaces the default 30s scan cache.
func WithCache(c *ScanCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithExclusionFilter installs a predicate that suppresses matching
// detections before summarization and caching.
func WithExclusionFilter(f func(Detection) bool) Option {
	return func(e *Engine) { e.exclude = f }
}

// WithMissingMetricsIdle controls whether metric-less databases and
// caches count as idle.
func WithMissingMetricsIdle(v bool) Option {
	return func(e *Engine) { e.treatMissingMetricsAsIdle = v }
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds a detection engine over the given store.
func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:                     st,
		rules:                     defaultRules(),
		cache:                     NewScanCache(DefaultCacheTTL),
		logger:                    slog.Default(),
		treatMissingMetricsAsIdle: true,
		now:                       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScanOptions tune one scan.
type ScanOptions struct {
	// Bypass skips the cache read. The fresh result still replaces the
	// cached entry.
	Bypass bool
}

// Cache exposes the scan cache for invalidation by the executor.
func (e *Engine) Cache() *ScanCache { return e.cache }

// DetectAll fetches the inventory snapshot, evaluates every rule, and
// returns the scored result. Results are memoized for the cache TTL.
func (e *Engine) DetectAll(ctx context.Context, opts ScanOptions) (*Result, error) {
	ctx, span := otel.Tracer("wastelens/detect").Start(ctx, "detect.DetectAll")
	defer span.End()

	if !opts.Bypass {
		if r, ok := e.cache.Get(defaultCacheKey); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return r, nil
		}
	}

	start := e.now()
	snap, err := fetchSnapshot(ctx, e.store)
	if err != nil {
		return nil, err
	}

	rc := Context{
		Now:                       start,
		TreatMissingMetricsAsIdle: e.treatMissingMetricsAsIdle,
		Logger:                    e.logger,
	}

	var detections []Detection
	for _, rule := range e.rules {
		found := rule.Evaluate(rc, snap)
		if len(found) > 0 {
			e.logger.Debug("scenario matched",
				slog.String("scenario", rule.ID()),
				slog.Int("detections", len(found)))
		}
		detections = append(detections, found...)
	}

	if e.exclude != nil {
		kept := detections[:0]
		excluded := 0
		for _, d := range detections {
			if e.exclude(d) {
				excluded++
				continue
			}
			kept = append(kept, d)
		}
		detections = kept
		if excluded > 0 {
			e.logger.Info("detections excluded by policy", slog.Int("count", excluded))
		}
	}
	if detections == nil {
		detections = []Detection{}
	}

	result := &Result{
		Detections:     detections,
		Summary:        summarize(detections),
		ResourceCounts: snap.ResourceCounts(),
		Timestamp:      start,
	}

	span.SetAttributes(
		attribute.Int("detections.total", result.Summary.TotalDetections),
		attribute.Float64("savings.total", result.Summary.TotalPotentialSavings),
	)
	e.logger.Info("scan complete",
		slog.Int("detections", result.Summary.TotalDetections),
		slog.Float64("potential_savings", result.Summary.TotalPotentialSavings),
		slog.Duration("elapsed", time.Since(start)))

	// The cached entry is a copy marked as a hit, so callers can tell a
	// fresh scan from a memoized one without the engine mutating results
	// it has already handed out.
	cached := *result
	cached.CacheHit = true
	e.cache.Set(defaultCacheKey, &cached)
	return result, nil
}
