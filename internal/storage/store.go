// Package storage persists study sessions and memory records as one unit.
package storage

import (
	"context"
	"fmt"

	"github.com/conorfennell/kindlenotes/internal/domain"
)

// Store loads and saves the {sessions, sm2} unit.
type Store interface {
	// Load returns a copy of the persisted data.
	Load(ctx context.Context) (*domain.StoreData, error)
	// Update runs fn against a copy of the persisted data and saves the
	// result. Nothing is saved when fn fails.
	Update(ctx context.Context, fn func(*domain.StoreData) error) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Open returns the store for driver at path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverJSON:
		return NewJSONFile(path), nil
	case DriverSQLite:
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func validate(data *domain.StoreData) error {
	for _, rec := range data.Sm2 {
		if err := rec.Validate(); err != nil {
			return err
		}
	}
	return nil
}
