package backend

import (
	"context"

	"boosterbucks/internal/store"
)

// Stores bundles the persistence ports a backend must provide
type Stores struct {
	Catalog   store.CatalogReader
	Progress  store.ProgressStore
	Ledger    store.LedgerStore
	Snapshots store.SnapshotSource
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the opened stores and optional cleanup function
type Result struct {
	Stores  Stores
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the stores described by the provided config
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type Type

	// SQLite specific
	SQLiteDBPath string
}

// Type represents the type of backend
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
