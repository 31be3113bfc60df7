// Package entities holds the data model shared by the interaction pipeline,
// the cache, the stores and the profile manager.
package entities

import (
	"strings"
	"time"
)

// Severity buckets reported by the interaction provider.
const (
	SeverityContraindicated = "Contraindicated"
	SeveritySerious         = "Serious - Use Alternative"
	SeverityMonitor         = "Monitor Closely"
	SeverityMinor           = "Minor"
	SeverityUnknown         = "Unknown"
)

// KeySeparator joins the canonical names of a MedicationSet into its cache key
const KeySeparator = "|"

// MedicationSet is the canonical identity of a group of medication names:
// trimmed, lower-cased, de-duplicated and sorted.
// Build it with interactions.Normalize, never by hand.
type MedicationSet struct {
	names []string
}

// NewMedicationSetFromCanonical wraps names that are already canonical and sorted,
// as read back from a store.
func NewMedicationSetFromCanonical(names []string) MedicationSet {
	cp := make([]string, len(names))
	copy(cp, names)
	return MedicationSet{names: cp}
}

// Names returns a copy of the canonical names
func (s MedicationSet) Names() []string {
	cp := make([]string, len(s.names))
	copy(cp, s.names)
	return cp
}

// Len returns the number of distinct names
func (s MedicationSet) Len() int {
	return len(s.names)
}

// Key returns the cache key of the set
func (s MedicationSet) Key() string {
	return strings.Join(s.names, KeySeparator)
}

func (s MedicationSet) String() string {
	return s.Key()
}

// RawInteraction is one pairwise finding as returned by the provider.
type RawInteraction struct {
	Subject    string
	Object     string
	SeverityID int
	Severity   string
	Text       string
}

// InteractionRecord is a formatted pairwise finding.
type InteractionRecord struct {
	Severity         string `json:"severity"`
	ReportedSeverity string `json:"reportedSeverity,omitempty"`
	Subject          string `json:"subject"`
	Object           string `json:"object"`
	Pair             string `json:"pair"`
	Description      string `json:"description"`
	Note             string `json:"note,omitempty"`
}

// SeverityBuckets groups records by severity label
type SeverityBuckets map[string][]InteractionRecord

// Count returns the total number of records across all buckets
func (b SeverityBuckets) Count() int {
	n := 0
	for _, records := range b {
		n += len(records)
	}
	return n
}

// InteractionResult is the output of one resolve→retrieve→format run.
type InteractionResult struct {
	BySeverity SeverityBuckets
	// Unresolved lists names that could not be mapped to an identifier
	Unresolved []string
}

// CachedInteractionResult is one row of the interaction cache.
// There is exactly one row per MedicationSet key.
type CachedInteractionResult struct {
	Key           string          `json:"key"`
	Medications   []string        `json:"medications"`
	BySeverity    SeverityBuckets `json:"bySeverity"`
	Unresolved    []string        `json:"unresolved,omitempty"`
	LastRefreshed time.Time       `json:"lastRefreshed"`
	Stale         bool            `json:"stale,omitempty"`
}

// Set rebuilds the MedicationSet the row belongs to
func (c CachedInteractionResult) Set() MedicationSet {
	return NewMedicationSetFromCanonical(c.Medications)
}

// MedicationEntry is one medication in a user's profile
type MedicationEntry struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency int    `json:"frequency"`
}

// MedicationProfile is the per-user list of active medications
type MedicationProfile struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userHash"`
	Medications []MedicationEntry `json:"medications"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Names returns the medication names in profile order
func (p MedicationProfile) Names() []string {
	names := make([]string, 0, len(p.Medications))
	for _, m := range p.Medications {
		names = append(names, m.Name)
	}
	return names
}

// RefreshReport summarises one refresh run
type RefreshReport struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"-"`
	Total     int           `json:"total"`
	Refreshed int           `json:"refreshed"`
	Failed    int           `json:"failed"`
	// FailedKeys lists the cache keys that could not be recomputed
	FailedKeys []string `json:"failedKeys,omitempty"`
}
