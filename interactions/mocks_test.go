package interactions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/giygas/interactions-api/interactions/entities"
)

type mockLookup struct {
	ids    map[string]string
	failOn map[string]bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	hold        chan struct{}
}

func (m *mockLookup) LookupIdentifiers(ctx context.Context, name string) ([]string, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.hold != nil {
		select {
		case <-m.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.failOn[name] {
		return nil, errors.New("lookup unavailable")
	}
	if id, ok := m.ids[name]; ok {
		return []string{id}, nil
	}
	return []string{}, nil
}

type mockProvider struct {
	raw   []entities.RawInteraction
	err   error
	block chan struct{}
	calls atomic.Int32

	mu      sync.Mutex
	lastIDs []string
}

func (m *mockProvider) FetchInteractions(ctx context.Context, ids []string) ([]entities.RawInteraction, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastIDs = append([]string(nil), ids...)
	m.mu.Unlock()

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.raw, nil
}

func (m *mockProvider) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastIDs
}

type mockStore struct {
	mu     sync.Mutex
	rows   map[string]entities.CachedInteractionResult
	putErr error
	puts   int
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[string]entities.CachedInteractionResult)}
}

func (m *mockStore) GetInteraction(_ context.Context, key string) (entities.CachedInteractionResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	return row, ok, nil
}

func (m *mockStore) PutInteraction(_ context.Context, entry entities.CachedInteractionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.rows[entry.Key] = entry
	return nil
}

func (m *mockStore) InteractionKeys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.rows))
	for k := range m.rows {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *mockStore) CountInteractions(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

func (m *mockStore) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

type mockProfiles struct {
	names map[string][]string
	err   error
}

func (m *mockProfiles) MedicationNames(_ context.Context, userID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.names[userID], nil
}

func mustNormalize(names ...string) entities.MedicationSet {
	set, err := Normalize(names)
	if err != nil {
		panic(err)
	}
	return set
}
