package interactions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/giygas/interactions-api/interactions/entities"
	"github.com/giygas/interactions-api/interfaces"
	"github.com/giygas/interactions-api/logging"
)

// CheckRequest is one interaction check
type CheckRequest struct {
	Medications []string
	// UserID selects the profile used when Medications is empty
	UserID string
	// BypassCache computes a fresh result without reading or writing the cache
	BypassCache bool
}

// CheckResponse is the result of an interaction check
type CheckResponse struct {
	Medications   []string                 `json:"medications"`
	BySeverity    entities.SeverityBuckets `json:"bySeverity"`
	Warnings      []Warning                `json:"warnings,omitempty"`
	LastRefreshed time.Time                `json:"lastRefreshed"`
	Outcome       Outcome                  `json:"-"`
}

// Checker runs the normalize → cache → resolve → retrieve → format pipeline
type Checker struct {
	resolver  *Resolver
	retriever *Retriever
	cache     *Cache
	profiles  interfaces.ProfileReader
	now       func() time.Time
}

// NewChecker wires the pipeline. profiles may be nil when no profile backs the checks.
func NewChecker(resolver *Resolver, retriever *Retriever, cache *Cache, profiles interfaces.ProfileReader) *Checker {
	return &Checker{
		resolver:  resolver,
		retriever: retriever,
		cache:     cache,
		profiles:  profiles,
		now:       time.Now,
	}
}

// Cache returns the interaction cache the checker writes to
func (c *Checker) Cache() *Cache {
	return c.cache
}

// Check answers an interaction check, from the cache when possible
func (c *Checker) Check(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	names := req.Medications
	if len(names) == 0 && req.UserID != "" && c.profiles != nil {
		profileNames, err := c.profiles.MedicationNames(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load medications of user: %w", err)
		}
		names = profileNames
	}

	set, err := Normalize(names)
	if err != nil {
		return nil, err
	}

	if req.BypassCache {
		result, err := c.Compute(ctx, set)
		if err != nil {
			return nil, err
		}
		return &CheckResponse{
			Medications:   set.Names(),
			BySeverity:    result.BySeverity,
			Warnings:      warningsFor(result.Unresolved),
			LastRefreshed: c.now().UTC().Truncate(time.Millisecond),
			Outcome:       OutcomeBypass,
		}, nil
	}

	entry, outcome, err := c.cache.GetOrCompute(ctx, set, c.Compute)
	if err != nil {
		return nil, err
	}

	return &CheckResponse{
		Medications:   entry.Medications,
		BySeverity:    entry.BySeverity,
		Warnings:      warningsFor(entry.Unresolved),
		LastRefreshed: entry.LastRefreshed,
		Outcome:       outcome,
	}, nil
}

// Compute runs resolve → retrieve → format for set, ignoring the cache
func (c *Checker) Compute(ctx context.Context, set entities.MedicationSet) (entities.InteractionResult, error) {
	resolution := c.resolver.Resolve(ctx, set)

	if len(resolution.IDs) < 2 {
		reason := "not enough medication identifiers found for interaction check"
		if len(resolution.Unresolved) > 0 {
			reason += fmt.Sprintf(" (unresolved: %s)", strings.Join(resolution.Unresolved, ", "))
		}
		return entities.InteractionResult{}, fmt.Errorf("%w: %s", ErrIdentifierResolution, reason)
	}

	if len(resolution.Unresolved) > 0 {
		logging.Info("Partial identifier resolution", "key", set.Key(), "unresolved", resolution.Unresolved)
	}

	raw, err := c.retriever.Retrieve(ctx, resolution.IDs)
	if err != nil {
		return entities.InteractionResult{}, err
	}

	return entities.InteractionResult{
		BySeverity: Format(raw),
		Unresolved: resolution.Unresolved,
	}, nil
}

func warningsFor(unresolved []string) []Warning {
	if len(unresolved) == 0 {
		return nil
	}
	return []Warning{partialResolutionWarning(unresolved)}
}
