// Package engine wires the selection pipeline: cache lookup, trigger
// matching, related-skill expansion, and budget selection over the current
// registry snapshot. It is the sole entry point the surrounding assistant
// or editor integration consumes.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opus67/skillctx/pkg/cache"
	"github.com/opus67/skillctx/pkg/expander"
	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/matcher"
	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/selector"
	"github.com/opus67/skillctx/pkg/telemetry"
	"github.com/opus67/skillctx/pkg/types/selection"
)

// Recorder receives completed selections for out-of-band persistence.
// Implementations must not block; the engine calls Record on the request
// path after the selection is already decided.
type Recorder interface {
	Record(ctx context.Context, rec selection.AuditRecord)
}

// Engine owns the registry, the result cache, and the pipeline configuration.
type Engine struct {
	registry *registry.Registry
	cache    *cache.LRU
	weights  matcher.Weights
	expand   expander.Config
	recorder Recorder

	lastReload atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights overrides the trigger-class scoring weights.
func WithWeights(w matcher.Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithExpansion overrides the related-skill expansion bounds.
func WithExpansion(cfg expander.Config) Option {
	return func(e *Engine) { e.expand = cfg }
}

// WithCacheCapacity sets the result-cache entry limit.
func WithCacheCapacity(capacity int) Option {
	return func(e *Engine) { e.cache = cache.NewLRU(capacity) }
}

// WithRecorder attaches a selection recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New creates an engine with an empty registry.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry: registry.New(),
		cache:    cache.NewLRU(cache.DefaultCapacity),
		weights:  matcher.DefaultWeights(),
		expand:   expander.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load populates the registry from the source. The whole batch is validated
// before anything becomes visible; on error the prior snapshot stays active.
func (e *Engine) Load(ctx context.Context, src registry.Source) error {
	return e.Reload(ctx, src)
}

// Reload atomically swaps in a new registry snapshot and invalidates the
// result cache. In-flight selections finish against the old snapshot.
func (e *Engine) Reload(ctx context.Context, src registry.Source) error {
	return telemetry.WithSpan(ctx, "engine.reload", func(ctx context.Context) error {
		if err := e.registry.Reload(ctx, src); err != nil {
			return err
		}
		e.cache.Invalidate()
		e.lastReload.Store(time.Now().UnixNano())
		return nil
	})
}

// Select deterministically chooses the skills to load for the given
// context. An empty context is valid and yields the always-on set.
func (e *Engine) Select(ctx context.Context, reqCtx selection.Context) (*selection.Selection, error) {
	var result *selection.Selection

	err := telemetry.WithSpan(ctx, "engine.select", func(ctx context.Context) error {
		snap := e.registry.Snapshot()
		fingerprint := cache.Fingerprint(reqCtx)

		log := logger.G(ctx).WithField("fingerprint", fingerprint[:12])

		if sel, ok := e.cache.Get(fingerprint, snap.Version()); ok {
			telemetry.SetAttributes(ctx, attribute.Bool("cache.hit", true))
			log.WithField("skills", len(sel.SkillIDs)).Debug("selection served from cache")
			result = sel
			e.record(ctx, reqCtx, fingerprint, sel, true)
			return nil
		}

		candidates := matcher.Match(snap, reqCtx, e.weights)
		direct := len(candidates)
		expander.Expand(snap, candidates, e.expand)

		sel, err := selector.Select(snap, candidates, reqCtx)
		if err != nil {
			return err
		}

		telemetry.SetAttributes(ctx,
			attribute.Bool("cache.hit", false),
			attribute.Int("candidates.direct", direct),
			attribute.Int("candidates.expanded", len(candidates)),
			attribute.Int("selection.skills", len(sel.SkillIDs)),
			attribute.Int("selection.cost", sel.TotalCost),
		)
		log.WithField("direct", direct).
			WithField("pool", len(candidates)).
			WithField("selected", len(sel.SkillIDs)).
			WithField("cost", sel.TotalCost).
			Debug("selection computed")

		e.cache.Put(fingerprint, snap.Version(), sel)
		result = sel
		e.record(ctx, reqCtx, fingerprint, sel, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) record(ctx context.Context, reqCtx selection.Context, fingerprint string, sel *selection.Selection, cacheHit bool) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(ctx, selection.AuditRecord{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		Fingerprint: fingerprint,
		QueryText:   reqCtx.QueryText,
		Budget:      sel.Budget,
		TotalCost:   sel.TotalCost,
		SkillIDs:    sel.SkillIDs,
		CacheHit:    cacheHit,
	})
}

// Get returns a skill by id from the active snapshot, for diagnostics.
func (e *Engine) Get(id string) (*selection.Skill, error) {
	return e.registry.Get(id)
}

// Skills returns every skill in the active snapshot in id order.
func (e *Engine) Skills() []*selection.Skill {
	return e.registry.Snapshot().All()
}

// Stats reports registry and cache counters for the admin surface.
func (e *Engine) Stats() selection.Stats {
	snap := e.registry.Snapshot()
	stats := selection.Stats{
		SkillCount:      snap.Len(),
		RegistryVersion: snap.Version(),
		CacheHitRate:    e.cache.HitRate(),
	}
	if nanos := e.lastReload.Load(); nanos > 0 {
		stats.LastReloadTime = time.Unix(0, nanos)
	}
	return stats
}
