// Package interfaces defines core abstractions for the interactions API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/interactions-api/interactions/entities"
)

// IdentifierLookup maps a medication name to candidate vocabulary identifiers.
// An empty slice with a nil error means the name is unknown.
type IdentifierLookup interface {
	LookupIdentifiers(ctx context.Context, name string) ([]string, error)
}

// InteractionProvider returns pairwise interaction findings for a batch of identifiers.
type InteractionProvider interface {
	FetchInteractions(ctx context.Context, ids []string) ([]entities.RawInteraction, error)
}

// InteractionStore persists cached interaction rows, one per MedicationSet key.
type InteractionStore interface {
	GetInteraction(ctx context.Context, key string) (entities.CachedInteractionResult, bool, error)
	// PutInteraction replaces the row for entry.Key
	PutInteraction(ctx context.Context, entry entities.CachedInteractionResult) error
	InteractionKeys(ctx context.Context) ([]string, error)
	CountInteractions(ctx context.Context) (int, error)
}

// ProfileStore persists user medication profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (entities.MedicationProfile, bool, error)
	PutProfile(ctx context.Context, profile entities.MedicationProfile) error
	DeleteProfile(ctx context.Context, userID string) error
}

// Store is the persistent store used by the service.
type Store interface {
	InteractionStore
	ProfileStore
	Close() error
}

// ProfileReader provides the default medication names of a user.
type ProfileReader interface {
	MedicationNames(ctx context.Context, userID string) ([]string, error)
}

// Refresher recomputes every cached interaction row.
type Refresher interface {
	RefreshAll(ctx context.Context) (entities.RefreshReport, error)
}

// Scheduler defines the contract for job scheduling and health monitoring.
type Scheduler interface {
	Start() error
	Stop()
}

// RefreshStatus exposes the refresher state to the health checker.
type RefreshStatus interface {
	LastReport() (entities.RefreshReport, bool)
	IsRefreshing() bool
	NextRun() time.Time
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns current system health status, details and the HTTP status to answer with
	HealthCheck(ctx context.Context) (status string, details map[string]any, httpStatus int)
}

// HTTPHandler defines the contract for HTTP request handlers.
type HTTPHandler interface {
	CheckInteractions(w http.ResponseWriter, r *http.Request)
	InvalidateInteractions(w http.ResponseWriter, r *http.Request)
	AddMedications(w http.ResponseWriter, r *http.Request)
	RemoveMedications(w http.ResponseWriter, r *http.Request)
	LoadProfile(w http.ResponseWriter, r *http.Request)
	RunWeeklyTasks(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}
