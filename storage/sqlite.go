package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/giygas/interactions-api/interactions/entities"
	"github.com/giygas/interactions-api/interfaces"
	"github.com/giygas/interactions-api/logging"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its dialect and base FS in package state
var migrateMu sync.Mutex

// Compile-time check to ensure SQLiteStore implements Store
var _ interfaces.Store = (*SQLiteStore)(nil)

// SQLiteStore persists cache rows and profiles in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating when needed) the database at dbPath and runs the migrations
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.Info("SQLite store ready", "path", dbPath)
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// -- Interaction cache --

// GetInteraction returns the row stored under key
func (s *SQLiteStore) GetInteraction(ctx context.Context, key string) (entities.CachedInteractionResult, bool, error) {
	var (
		medications, bySeverity, unresolved, lastRefreshed string
		stale                                              bool
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT medications, by_severity, unresolved, last_refreshed, stale FROM interaction_cache WHERE cache_key = ?",
		key).Scan(&medications, &bySeverity, &unresolved, &lastRefreshed, &stale)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.CachedInteractionResult{}, false, nil
	}
	if err != nil {
		return entities.CachedInteractionResult{}, false, fmt.Errorf("failed to read interaction row %q: %w", key, err)
	}

	entry := entities.CachedInteractionResult{Key: key, Stale: stale}
	if err := json.Unmarshal([]byte(medications), &entry.Medications); err != nil {
		return entities.CachedInteractionResult{}, false, fmt.Errorf("corrupt medications of %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(bySeverity), &entry.BySeverity); err != nil {
		return entities.CachedInteractionResult{}, false, fmt.Errorf("corrupt severity buckets of %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(unresolved), &entry.Unresolved); err != nil {
		return entities.CachedInteractionResult{}, false, fmt.Errorf("corrupt unresolved names of %q: %w", key, err)
	}
	if entry.LastRefreshed, err = time.Parse(time.RFC3339Nano, lastRefreshed); err != nil {
		return entities.CachedInteractionResult{}, false, fmt.Errorf("corrupt refresh time of %q: %w", key, err)
	}
	if entry.BySeverity == nil {
		entry.BySeverity = entities.SeverityBuckets{}
	}

	return entry, true, nil
}

// PutInteraction upserts the row of entry.Key
func (s *SQLiteStore) PutInteraction(ctx context.Context, entry entities.CachedInteractionResult) error {
	medications, err := json.Marshal(entry.Medications)
	if err != nil {
		return fmt.Errorf("failed to encode medications: %w", err)
	}
	bySeverity, err := json.Marshal(entry.BySeverity)
	if err != nil {
		return fmt.Errorf("failed to encode severity buckets: %w", err)
	}
	unresolved, err := json.Marshal(entry.Unresolved)
	if err != nil {
		return fmt.Errorf("failed to encode unresolved names: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interaction_cache (cache_key, medications, by_severity, unresolved, last_refreshed, stale)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			medications = excluded.medications,
			by_severity = excluded.by_severity,
			unresolved = excluded.unresolved,
			last_refreshed = excluded.last_refreshed,
			stale = excluded.stale`,
		entry.Key, string(medications), string(bySeverity), string(unresolved),
		entry.LastRefreshed.UTC().Format(time.RFC3339Nano), entry.Stale)
	if err != nil {
		return fmt.Errorf("failed to write interaction row %q: %w", entry.Key, err)
	}
	return nil
}

// InteractionKeys lists every cached key
func (s *SQLiteStore) InteractionKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT cache_key FROM interaction_cache ORDER BY cache_key")
	if err != nil {
		return nil, fmt.Errorf("failed to list interaction keys: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn("Failed to close rows", "error", err)
		}
	}()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// CountInteractions returns the number of cached rows
func (s *SQLiteStore) CountInteractions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interaction_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count interaction rows: %w", err)
	}
	return n, nil
}

// -- Profiles --

// GetProfile returns the profile of userID
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (entities.MedicationProfile, bool, error) {
	var profileID, medications, updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT profile_id, medications, updated_at FROM medication_profiles WHERE user_id = ?",
		userID).Scan(&profileID, &medications, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.MedicationProfile{}, false, nil
	}
	if err != nil {
		return entities.MedicationProfile{}, false, fmt.Errorf("failed to read profile: %w", err)
	}

	profile := entities.MedicationProfile{ID: profileID, UserID: userID}
	if err := json.Unmarshal([]byte(medications), &profile.Medications); err != nil {
		return entities.MedicationProfile{}, false, fmt.Errorf("corrupt profile medications: %w", err)
	}
	if profile.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return entities.MedicationProfile{}, false, fmt.Errorf("corrupt profile update time: %w", err)
	}
	return profile, true, nil
}

// PutProfile upserts the profile of profile.UserID
func (s *SQLiteStore) PutProfile(ctx context.Context, profile entities.MedicationProfile) error {
	medications, err := json.Marshal(profile.Medications)
	if err != nil {
		return fmt.Errorf("failed to encode profile medications: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO medication_profiles (user_id, profile_id, medications, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			profile_id = excluded.profile_id,
			medications = excluded.medications,
			updated_at = excluded.updated_at`,
		profile.UserID, profile.ID, string(medications), profile.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// DeleteProfile removes the profile of userID, if any
func (s *SQLiteStore) DeleteProfile(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM medication_profiles WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}
