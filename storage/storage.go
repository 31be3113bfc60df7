package storage

import (
	"fmt"

	"github.com/giygas/interactions-api/interfaces"
)

// Drivers accepted by Open
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open returns the store selected by driver. path is only used by the sqlite driver.
func Open(driver, path string) (interfaces.Store, error) {
	switch driver {
	case DriverSQLite:
		store, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
