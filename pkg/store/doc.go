// Package store persists rule encodings by name.
//
// The rule engine talks to persistence only through the Store interface.
// Three backends are provided:
//
//   - MemoryStore: a map, for tests and one-shot CLI use
//   - FileStore: one <name>.json file per rule in a directory
//   - SQLiteStore: a rules table in SQLite, through either the cgo
//     driver (github.com/mattn/go-sqlite3, driver name "sqlite3") or the
//     pure Go driver (modernc.org/sqlite, driver name "sqlite")
//
// Every failure is a *StoreError. Callers distinguish a missing rule from
// an unreachable backend with errors.Is:
//
//	enc, err := s.Load(ctx, "senior-sales")
//	switch {
//	case errors.Is(err, store.ErrNotFound):
//	    // no such rule
//	case errors.Is(err, store.ErrConnection):
//	    // backend failure; the cause is available through errors.Unwrap
//	}
//
// Backends do not interpret encodings. Retries and timeouts are the
// caller's concern, applied through the context passed to each call.
package store
