package store

import (
	"context"
	"fmt"
	"log/slog"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Dir     string        // FileStore directory
	SQLite  *SQLiteConfig // SQLiteStore settings; defaults when nil
}

// Open creates the backend named by opts.Backend.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(opts.Dir, logger)
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts.SQLite, logger)
	}
	return nil, fmt.Errorf("unknown store backend %q (want %s, %s or %s)", opts.Backend, BackendMemory, BackendFile, BackendSQLite)
}
