package interactions

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/giygas/interactions-api/interactions/entities"
	"github.com/giygas/interactions-api/interfaces"
	"github.com/giygas/interactions-api/logging"
	"github.com/giygas/interactions-api/metrics"
	"golang.org/x/sync/singleflight"
)

// Outcome tells how a cached lookup was served
type Outcome string

const (
	OutcomeHit    Outcome = "hit"
	OutcomeMiss   Outcome = "miss"
	OutcomeShared Outcome = "shared"
	OutcomeBypass Outcome = "bypass"
)

// Producer computes the interaction result of a set
type Producer func(ctx context.Context, set entities.MedicationSet) (entities.InteractionResult, error)

// Cache is a cache-aside store of interaction results keyed by MedicationSet.
// Reads go straight to the store; computations on miss are single-flighted per key.
type Cache struct {
	store          interfaces.InteractionStore
	group          singleflight.Group
	computeTimeout time.Duration
	now            func() time.Time
}

// NewCache creates a cache over store. computeTimeout bounds a shared computation,
// which outlives the request that started it.
func NewCache(store interfaces.InteractionStore, computeTimeout time.Duration) *Cache {
	return &Cache{
		store:          store,
		computeTimeout: computeTimeout,
		now:            time.Now,
	}
}

// Get returns the cached row when present and not invalidated.
// Store read failures are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, set entities.MedicationSet) (entities.CachedInteractionResult, bool) {
	entry, ok, err := c.store.GetInteraction(ctx, set.Key())
	if err != nil {
		logging.Warn("Interaction cache read failed", "key", set.Key(), "error", err)
		return entities.CachedInteractionResult{}, false
	}
	if !ok || entry.Stale {
		return entities.CachedInteractionResult{}, false
	}
	return entry, true
}

// GetOrCompute returns the cached row or computes it with produce.
// Concurrent callers for the same key share one computation. A caller whose
// ctx ends stops waiting but the computation carries on for the others.
func (c *Cache) GetOrCompute(ctx context.Context, set entities.MedicationSet, produce Producer) (entities.CachedInteractionResult, Outcome, error) {
	if entry, ok := c.Get(ctx, set); ok {
		metrics.CacheLookupsTotal.WithLabelValues(string(OutcomeHit)).Inc()
		return entry, OutcomeHit, nil
	}

	key := set.Key()
	detached := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (any, error) {
		// Another flight may have written the row between our read and now.
		if entry, ok := c.Get(detached, set); ok {
			return entry, nil
		}

		computeCtx, cancel := context.WithTimeout(detached, c.computeTimeout)
		defer cancel()

		result, err := produce(computeCtx, set)
		if err != nil {
			return nil, err
		}

		entry := c.newEntry(set, result)
		if err := c.store.PutInteraction(detached, entry); err != nil {
			// The computed value is still served; the row is recomputed on the next miss.
			metrics.CacheWriteErrorsTotal.Inc()
			logging.Error("Failed to persist interaction result", "key", key, "error", fmt.Errorf("%w: %w", ErrCacheWrite, err))
		}
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return entities.CachedInteractionResult{}, OutcomeMiss, ctx.Err()
	case res := <-ch:
		outcome := OutcomeMiss
		if res.Shared {
			outcome = OutcomeShared
		}
		metrics.CacheLookupsTotal.WithLabelValues(string(outcome)).Inc()
		if res.Err != nil {
			return entities.CachedInteractionResult{}, outcome, res.Err
		}
		return res.Val.(entities.CachedInteractionResult), outcome, nil
	}
}

// Overwrite replaces the row of set with result
func (c *Cache) Overwrite(ctx context.Context, set entities.MedicationSet, result entities.InteractionResult) (entities.CachedInteractionResult, error) {
	entry := c.newEntry(set, result)
	if err := c.store.PutInteraction(ctx, entry); err != nil {
		metrics.CacheWriteErrorsTotal.Inc()
		return entities.CachedInteractionResult{}, fmt.Errorf("%w: overwrite %q: %w", ErrCacheWrite, set.Key(), err)
	}
	return entry, nil
}

// Invalidate marks the row of set stale so the next lookup recomputes it.
// It reports false when no row exists.
func (c *Cache) Invalidate(ctx context.Context, set entities.MedicationSet) (bool, error) {
	entry, ok, err := c.store.GetInteraction(ctx, set.Key())
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	entry.Stale = true
	if err := c.store.PutInteraction(ctx, entry); err != nil {
		return false, fmt.Errorf("%w: invalidate %q: %w", ErrCacheWrite, set.Key(), err)
	}
	return true, nil
}

// Keys enumerates the MedicationSet of every cached row
func (c *Cache) Keys(ctx context.Context) ([]entities.MedicationSet, error) {
	keys, err := c.store.InteractionKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached keys: %w", err)
	}
	slices.Sort(keys)

	sets := make([]entities.MedicationSet, 0, len(keys))
	for _, key := range keys {
		names := strings.Split(key, entities.KeySeparator)
		if len(names) < 2 {
			logging.Warn("Skipping malformed cache key", "key", key)
			continue
		}
		sets = append(sets, entities.NewMedicationSetFromCanonical(names))
	}
	return sets, nil
}

// Size returns the number of cached rows
func (c *Cache) Size(ctx context.Context) (int, error) {
	return c.store.CountInteractions(ctx)
}

func (c *Cache) newEntry(set entities.MedicationSet, result entities.InteractionResult) entities.CachedInteractionResult {
	buckets := result.BySeverity
	if buckets == nil {
		buckets = entities.SeverityBuckets{}
	}
	return entities.CachedInteractionResult{
		Key:           set.Key(),
		Medications:   set.Names(),
		BySeverity:    buckets,
		Unresolved:    result.Unresolved,
		LastRefreshed: c.now().UTC().Truncate(time.Millisecond),
	}
}
