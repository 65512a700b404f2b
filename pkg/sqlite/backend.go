// Package sqlite provides the public API for the SQLite trade store.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"log/slog"

	"github.com/mesh-intelligence/flipstore/internal/sqlite"
	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// NewBackend creates a new SQLite backend instance that logs to logger.
// A nil logger uses slog.Default(). The backend is not attached; call
// Attach with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewBackend(nil)
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "flipping",
//	})
//	defer store.Detach()
func NewBackend(logger *slog.Logger) types.TradeStore {
	return sqlite.NewBackend(sqlite.WithLogger(logger))
}
