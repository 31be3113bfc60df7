package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/giygas/interactions-api/interactions/entities"
	"github.com/giygas/interactions-api/interfaces"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "interactions.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return store
}

func stores(t *testing.T) map[string]interfaces.Store {
	return map[string]interfaces.Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func sampleEntry(key string, names ...string) entities.CachedInteractionResult {
	return entities.CachedInteractionResult{
		Key:         key,
		Medications: names,
		BySeverity: entities.SeverityBuckets{
			entities.SeverityMonitor: {
				{
					Severity:    entities.SeverityMonitor,
					Subject:     "aspirin",
					Object:      "warfarin",
					Pair:        "aspirin and warfarin",
					Description: "Increased bleeding. Comment: Watch INR.",
					Note:        "Watch INR.",
				},
			},
		},
		Unresolved:    []string{"unobtainium"},
		LastRefreshed: time.Date(2026, 3, 1, 10, 30, 0, 123000000, time.UTC),
	}
}

func TestInteractionRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := store.GetInteraction(ctx, "aspirin|warfarin"); err != nil || ok {
				t.Fatalf("expected miss on empty store, got ok=%v err=%v", ok, err)
			}

			want := sampleEntry("aspirin|warfarin", "aspirin", "warfarin")
			if err := store.PutInteraction(ctx, want); err != nil {
				t.Fatalf("put: %v", err)
			}

			got, ok, err := store.GetInteraction(ctx, want.Key)
			if err != nil || !ok {
				t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
			}

			wantJSON, _ := json.Marshal(want)
			gotJSON, _ := json.Marshal(got)
			if string(wantJSON) != string(gotJSON) {
				t.Errorf("round trip changed the row:\nwant %s\ngot  %s", wantJSON, gotJSON)
			}
		})
	}
}

func TestInteractionUpsertKeepsOneRowPerKey(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first := sampleEntry("a|b", "a", "b")
			second := sampleEntry("a|b", "a", "b")
			second.BySeverity = entities.SeverityBuckets{}
			second.Stale = true

			for _, e := range []entities.CachedInteractionResult{first, second} {
				if err := store.PutInteraction(ctx, e); err != nil {
					t.Fatalf("put: %v", err)
				}
			}

			n, err := store.CountInteractions(ctx)
			if err != nil || n != 1 {
				t.Fatalf("expected 1 row, got %d (err %v)", n, err)
			}

			got, _, _ := store.GetInteraction(ctx, "a|b")
			if !got.Stale || len(got.BySeverity) != 0 {
				t.Errorf("expected second write to win, got %+v", got)
			}
		})
	}
}

func TestInteractionKeys(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"c|d", "a|b", "a|b|c"} {
				if err := store.PutInteraction(ctx, sampleEntry(key)); err != nil {
					t.Fatalf("put: %v", err)
				}
			}

			keys, err := store.InteractionKeys(ctx)
			if err != nil {
				t.Fatalf("keys: %v", err)
			}
			got := map[string]bool{}
			for _, k := range keys {
				got[k] = true
			}
			want := map[string]bool{"a|b": true, "a|b|c": true, "c|d": true}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("expected keys %v, got %v", want, keys)
			}
		})
	}
}

func TestProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			profile := entities.MedicationProfile{
				ID:     "5c1b3f0e-8f55-4a40-a8b6-3c0b7b0d6f11",
				UserID: "user-1",
				Medications: []entities.MedicationEntry{
					{Name: "aspirin", Dosage: "100mg", Frequency: 1},
					{Name: "warfarin", Dosage: "5mg", Frequency: 2},
				},
				UpdatedAt: time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC),
			}
			if err := store.PutProfile(ctx, profile); err != nil {
				t.Fatalf("put: %v", err)
			}

			got, ok, err := store.GetProfile(ctx, "user-1")
			if err != nil || !ok {
				t.Fatalf("expected profile, got ok=%v err=%v", ok, err)
			}
			if !reflect.DeepEqual(got.Medications, profile.Medications) || got.ID != profile.ID || !got.UpdatedAt.Equal(profile.UpdatedAt) {
				t.Errorf("profile changed on round trip: %+v", got)
			}

			// Mutating the returned copy must not leak into the store
			got.Medications[0].Dosage = "changed"
			again, _, _ := store.GetProfile(ctx, "user-1")
			if again.Medications[0].Dosage != "100mg" {
				t.Errorf("store shares memory with callers: %+v", again.Medications[0])
			}

			if err := store.DeleteProfile(ctx, "user-1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, ok, _ := store.GetProfile(ctx, "user-1"); ok {
				t.Error("expected profile to be gone after delete")
			}
			if err := store.DeleteProfile(ctx, "user-1"); err != nil {
				t.Errorf("deleting a missing profile should succeed, got %v", err)
			}
		})
	}
}

func TestConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			errs := make(chan error, 40)
			for i := range 40 {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					key := fmt.Sprintf("drug%02d|zz", i%10)
					if err := store.PutInteraction(ctx, sampleEntry(key)); err != nil {
						errs <- err
					}
					if _, _, err := store.GetInteraction(ctx, key); err != nil {
						errs <- err
					}
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Errorf("concurrent access failed: %v", err)
			}

			if n, _ := store.CountInteractions(ctx); n != 10 {
				t.Errorf("expected 10 distinct rows, got %d", n)
			}
		})
	}
}

func TestSQLiteStoreReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "interactions.db")

	first, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.PutInteraction(ctx, sampleEntry("a|b", "a", "b")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = second.Close() }()

	if _, ok, err := second.GetInteraction(ctx, "a|b"); err != nil || !ok {
		t.Errorf("expected row to survive reopen, got ok=%v err=%v", ok, err)
	}
}

func TestOpen(t *testing.T) {
	if _, err := Open("postgres", ""); err == nil {
		t.Error("expected error for unknown driver")
	}

	s, err := Open(DriverMemory, "")
	if err != nil {
		t.Fatalf("memory driver: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", s)
	}
}
