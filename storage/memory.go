// Package storage provides the persistent stores behind the interaction cache
// and the medication profiles: an in-memory store and a SQLite store.
package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/giygas/interactions-api/interactions/entities"
	"github.com/giygas/interactions-api/interfaces"
)

// Compile-time check to ensure MemoryStore implements Store
var _ interfaces.Store = (*MemoryStore)(nil)

// MemoryStore keeps every row in process memory. Reads never take a lock.
type MemoryStore struct {
	interactions sync.Map // string -> entities.CachedInteractionResult
	profiles     sync.Map // string -> entities.MedicationProfile
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// GetInteraction returns the row stored under key
func (m *MemoryStore) GetInteraction(_ context.Context, key string) (entities.CachedInteractionResult, bool, error) {
	if v, ok := m.interactions.Load(key); ok {
		if entry, ok := v.(entities.CachedInteractionResult); ok {
			return entry, true, nil
		}
	}
	return entities.CachedInteractionResult{}, false, nil
}

// PutInteraction replaces the row of entry.Key
func (m *MemoryStore) PutInteraction(_ context.Context, entry entities.CachedInteractionResult) error {
	m.interactions.Store(entry.Key, entry)
	return nil
}

// InteractionKeys lists every cached key
func (m *MemoryStore) InteractionKeys(_ context.Context) ([]string, error) {
	keys := make([]string, 0)
	m.interactions.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	return keys, nil
}

// CountInteractions returns the number of cached rows
func (m *MemoryStore) CountInteractions(_ context.Context) (int, error) {
	n := 0
	m.interactions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n, nil
}

// GetProfile returns a copy of the profile of userID
func (m *MemoryStore) GetProfile(_ context.Context, userID string) (entities.MedicationProfile, bool, error) {
	if v, ok := m.profiles.Load(userID); ok {
		if profile, ok := v.(entities.MedicationProfile); ok {
			profile.Medications = slices.Clone(profile.Medications)
			return profile, true, nil
		}
	}
	return entities.MedicationProfile{}, false, nil
}

// PutProfile replaces the profile of profile.UserID
func (m *MemoryStore) PutProfile(_ context.Context, profile entities.MedicationProfile) error {
	profile.Medications = slices.Clone(profile.Medications)
	m.profiles.Store(profile.UserID, profile)
	return nil
}

// DeleteProfile removes the profile of userID, if any
func (m *MemoryStore) DeleteProfile(_ context.Context, userID string) error {
	m.profiles.Delete(userID)
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
