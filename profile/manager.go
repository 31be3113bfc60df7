// Package profile manages the per-user list of active medications.
package profile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/giygas/interactions-api/interactions"
	"github.com/giygas/interactions-api/interactions/entities"
	"github.com/giygas/interactions-api/interfaces"
	"github.com/giygas/interactions-api/logging"
	"github.com/google/uuid"
)

// ErrProfileNotFound is returned when the user has no profile
var ErrProfileNotFound = errors.New("profile not found")

// Compile-time check to ensure Manager implements ProfileReader
var _ interfaces.ProfileReader = (*Manager)(nil)

// Manager reads and updates medication profiles. Updates are serialised.
type Manager struct {
	store interfaces.ProfileStore
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewManager creates a manager over store
func NewManager(store interfaces.ProfileStore) *Manager {
	return &Manager{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Add records one medication for userID
func (m *Manager) Add(ctx context.Context, userID, name, dosage string, frequency int) (entities.MedicationProfile, error) {
	return m.AddMany(ctx, userID, []entities.MedicationEntry{{Name: name, Dosage: dosage, Frequency: frequency}})
}

// AddMany records entries in one update. The profile is created on first add.
// An entry whose name matches an existing one, compared canonically, replaces
// its dosage and frequency.
func (m *Manager) AddMany(ctx context.Context, userID string, entries []entities.MedicationEntry) (entities.MedicationProfile, error) {
	if len(entries) == 0 {
		return entities.MedicationProfile{}, fmt.Errorf("%w: no medication to add", interactions.ErrInvalidInput)
	}
	entries = slices.Clone(entries)
	for i := range entries {
		entries[i].Name = strings.TrimSpace(entries[i].Name)
		if interactions.CanonicalName(entries[i].Name) == "" {
			return entities.MedicationProfile{}, fmt.Errorf("%w: medication name %d is empty", interactions.ErrInvalidInput, i+1)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok, err := m.store.GetProfile(ctx, userID)
	if err != nil {
		return entities.MedicationProfile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	if !ok {
		profile = entities.MedicationProfile{
			ID:     m.newID(),
			UserID: userID,
		}
		logging.Info("Creating medication profile", "profile_id", profile.ID)
	}

	for _, entry := range entries {
		canonical := interactions.CanonicalName(entry.Name)
		i := slices.IndexFunc(profile.Medications, func(e entities.MedicationEntry) bool {
			return interactions.CanonicalName(e.Name) == canonical
		})
		if i >= 0 {
			profile.Medications[i].Dosage = entry.Dosage
			profile.Medications[i].Frequency = entry.Frequency
			continue
		}
		profile.Medications = append(profile.Medications, entry)
	}
	profile.UpdatedAt = m.now().UTC()

	if err := m.store.PutProfile(ctx, profile); err != nil {
		return entities.MedicationProfile{}, fmt.Errorf("failed to save profile: %w", err)
	}
	return profile, nil
}

// Remove deletes the named medications from the profile of userID.
// The profile itself is deleted once empty.
func (m *Manager) Remove(ctx context.Context, userID string, names []string) (entities.MedicationProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok, err := m.store.GetProfile(ctx, userID)
	if err != nil {
		return entities.MedicationProfile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	if !ok {
		return entities.MedicationProfile{}, ErrProfileNotFound
	}

	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[interactions.CanonicalName(name)] = struct{}{}
	}
	profile.Medications = slices.DeleteFunc(profile.Medications, func(e entities.MedicationEntry) bool {
		_, found := drop[interactions.CanonicalName(e.Name)]
		return found
	})

	if len(profile.Medications) == 0 {
		if err := m.store.DeleteProfile(ctx, userID); err != nil {
			return entities.MedicationProfile{}, fmt.Errorf("failed to delete profile: %w", err)
		}
		logging.Info("Medication profile emptied and deleted", "profile_id", profile.ID)
		profile.Medications = []entities.MedicationEntry{}
		return profile, nil
	}

	profile.UpdatedAt = m.now().UTC()
	if err := m.store.PutProfile(ctx, profile); err != nil {
		return entities.MedicationProfile{}, fmt.Errorf("failed to save profile: %w", err)
	}
	return profile, nil
}

// Load returns the profile of userID
func (m *Manager) Load(ctx context.Context, userID string) (entities.MedicationProfile, error) {
	profile, ok, err := m.store.GetProfile(ctx, userID)
	if err != nil {
		return entities.MedicationProfile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	if !ok {
		return entities.MedicationProfile{}, ErrProfileNotFound
	}
	return profile, nil
}

// MedicationNames returns the names in the profile of userID, or none when it has no profile
func (m *Manager) MedicationNames(ctx context.Context, userID string) ([]string, error) {
	profile, err := m.Load(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return profile.Names(), nil
}
