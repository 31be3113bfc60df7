package interactions

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/giygas/interactions-api/interactions/entities"
)

func TestResolvePartial(t *testing.T) {
	lookup := &mockLookup{
		ids:    map[string]string{"aspirin": "101", "warfarin": "202"},
		failOn: map[string]bool{"ibuprofen": true},
	}
	r := NewResolver(lookup, time.Second, 4)

	res := r.Resolve(context.Background(), mustNormalize("warfarin", "aspirin", "ibuprofen", "madeupium"))

	if !slices.Equal(res.IDs, []string{"101", "202"}) {
		t.Errorf("expected ids in set order, got %v", res.IDs)
	}
	if !slices.Equal(res.Unresolved, []string{"ibuprofen", "madeupium"}) {
		t.Errorf("unexpected unresolved names %v", res.Unresolved)
	}
}

func TestResolveDeduplicatesIdentifiers(t *testing.T) {
	lookup := &mockLookup{ids: map[string]string{
		"acetylsalicylic acid": "101",
		"aspirin":              "101",
		"warfarin":             "202",
	}}
	r := NewResolver(lookup, time.Second, 4)

	res := r.Resolve(context.Background(), mustNormalize("aspirin", "acetylsalicylic acid", "warfarin"))

	if !slices.Equal(res.IDs, []string{"101", "202"}) {
		t.Errorf("expected duplicate ids collapsed, got %v", res.IDs)
	}
	if len(res.Unresolved) != 0 {
		t.Errorf("expected nothing unresolved, got %v", res.Unresolved)
	}
}

func TestResolveRespectsConcurrencyLimit(t *testing.T) {
	names := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"}
	ids := make(map[string]string, len(names))
	for _, n := range names {
		ids[n] = "id-" + n
	}
	lookup := &mockLookup{ids: ids, hold: make(chan struct{})}
	r := NewResolver(lookup, 5*time.Second, 2)

	done := make(chan Resolution)
	go func() {
		done <- r.Resolve(context.Background(), mustNormalize(names...))
	}()

	// Let the resolver saturate its slots, then release every lookup
	time.Sleep(50 * time.Millisecond)
	close(lookup.hold)
	res := <-done

	if len(res.IDs) != len(names) {
		t.Fatalf("expected %d ids, got %d", len(names), len(res.IDs))
	}
	if peak := lookup.maxInFlight.Load(); peak > 2 {
		t.Errorf("expected at most 2 concurrent lookups, saw %d", peak)
	}
}

func TestResolveLookupTimeoutDropsName(t *testing.T) {
	lookup := &mockLookup{ids: map[string]string{"aspirin": "101"}, hold: make(chan struct{})}
	r := NewResolver(lookup, 20*time.Millisecond, 2)

	res := r.Resolve(context.Background(), mustNormalize("aspirin", "warfarin"))

	if len(res.IDs) != 0 {
		t.Errorf("expected no ids after timeouts, got %v", res.IDs)
	}
	if len(res.Unresolved) != 2 {
		t.Errorf("expected both names unresolved, got %v", res.Unresolved)
	}
}

func TestRetrieve(t *testing.T) {
	provider := &mockProvider{raw: []entities.RawInteraction{{Subject: "a", Object: "b", Severity: "Minor"}}}
	r := NewRetriever(provider, time.Second)

	raw, err := r.Retrieve(context.Background(), []string{"1", "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw) != 1 {
		t.Errorf("expected one record, got %d", len(raw))
	}
	if !slices.Equal(provider.ids(), []string{"1", "2"}) {
		t.Errorf("expected one batched call with both ids, got %v", provider.ids())
	}
}

func TestRetrieveErrors(t *testing.T) {
	t.Run("provider failure", func(t *testing.T) {
		r := NewRetriever(&mockProvider{err: errors.New("503")}, time.Second)
		_, err := r.Retrieve(context.Background(), []string{"1", "2"})
		if !errors.Is(err, ErrExternalService) || !IsRetryable(err) {
			t.Errorf("expected a retryable external service error, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		r := NewRetriever(&mockProvider{block: make(chan struct{})}, 20*time.Millisecond)
		_, err := r.Retrieve(context.Background(), []string{"1", "2"})
		if !errors.Is(err, ErrExternalService) {
			t.Errorf("expected ErrExternalService, got %v", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected the deadline to be kept in the chain, got %v", err)
		}
	})

	t.Run("not enough ids", func(t *testing.T) {
		provider := &mockProvider{}
		r := NewRetriever(provider, time.Second)
		_, err := r.Retrieve(context.Background(), []string{"1"})
		if !errors.Is(err, ErrIdentifierResolution) {
			t.Errorf("expected ErrIdentifierResolution, got %v", err)
		}
		if provider.calls.Load() != 0 {
			t.Error("provider should not be called")
		}
	})
}
