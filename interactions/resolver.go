package interactions

import (
	"context"
	"strings"
	"time"

	"github.com/giygas/interactions-api/interactions/entities"
	"github.com/giygas/interactions-api/interfaces"
	"github.com/giygas/interactions-api/logging"
	"github.com/giygas/interactions-api/metrics"
	"golang.org/x/sync/errgroup"
)

// Resolution is what the resolver found for a MedicationSet
type Resolution struct {
	// IDs follows the order of the set, without duplicates
	IDs        []string
	Unresolved []string
}

// Resolver maps canonical names to external identifiers
type Resolver struct {
	lookup      interfaces.IdentifierLookup
	timeout     time.Duration
	concurrency int
}

// NewResolver creates a resolver issuing at most concurrency lookups at once,
// each bounded by timeout.
func NewResolver(lookup interfaces.IdentifierLookup, timeout time.Duration, concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{
		lookup:      lookup,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// Resolve looks every name up concurrently. A failed lookup only drops its own name.
func (r *Resolver) Resolve(ctx context.Context, set entities.MedicationSet) Resolution {
	names := set.Names()
	found := make([]string, len(names))

	// Lookups never return an error to the group so one failure cannot cancel the others.
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, name := range names {
		g.Go(func() error {
			found[i] = r.resolveOne(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	res := Resolution{}
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		id := found[i]
		if id == "" {
			res.Unresolved = append(res.Unresolved, name)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		res.IDs = append(res.IDs, id)
	}

	return res
}

func (r *Resolver) resolveOne(ctx context.Context, name string) string {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	candidates, err := r.lookup.LookupIdentifiers(callCtx, name)
	if err != nil {
		metrics.ExternalCallsTotal.WithLabelValues(metrics.ServiceLookup, metrics.OutcomeError).Inc()
		logging.Warn("Identifier lookup failed", "medication", name, "error", err)
		return ""
	}

	for _, c := range candidates {
		if id := strings.TrimSpace(c); id != "" {
			metrics.ExternalCallsTotal.WithLabelValues(metrics.ServiceLookup, metrics.OutcomeSuccess).Inc()
			return id
		}
	}

	metrics.ExternalCallsTotal.WithLabelValues(metrics.ServiceLookup, metrics.OutcomeEmpty).Inc()
	logging.Debug("No identifier found", "medication", name)
	return ""
}
