package interactions

import (
	"context"
	"fmt"
	"time"

	"github.com/giygas/interactions-api/interactions/entities"
	"github.com/giygas/interactions-api/interfaces"
	"github.com/giygas/interactions-api/metrics"
)

// Retriever fetches raw interaction records for a batch of identifiers
type Retriever struct {
	provider interfaces.InteractionProvider
	timeout  time.Duration
}

// NewRetriever creates a retriever whose provider call is bounded by timeout
func NewRetriever(provider interfaces.InteractionProvider, timeout time.Duration) *Retriever {
	return &Retriever{
		provider: provider,
		timeout:  timeout,
	}
}

// Retrieve issues one batched call with all ids. Any provider failure is ErrExternalService.
func (r *Retriever) Retrieve(ctx context.Context, ids []string) ([]entities.RawInteraction, error) {
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: need at least two identifiers, got %d", ErrIdentifierResolution, len(ids))
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	raw, err := r.provider.FetchInteractions(callCtx, ids)
	metrics.ExternalCallDuration.WithLabelValues(metrics.ServiceInteractions).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ExternalCallsTotal.WithLabelValues(metrics.ServiceInteractions, metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("%w: interaction lookup failed: %w", ErrExternalService, err)
	}

	metrics.ExternalCallsTotal.WithLabelValues(metrics.ServiceInteractions, metrics.OutcomeSuccess).Inc()
	return raw, nil
}
