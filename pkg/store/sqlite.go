package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3" // driver "sqlite3", requires cgo
	_ "modernc.org/sqlite"          // driver "sqlite", pure Go
)

// SQLite driver names.
const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"
)

// Compression settings for stored encodings.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// maxDecodedSize bounds the memory a compressed encoding may expand to.
const maxDecodedSize = 64 << 20

var errChecksum = errors.New("stored encoding does not match its checksum")

// SQLiteConfig contains configuration for the SQLite backend.
type SQLiteConfig struct {
	// Driver selects the database/sql driver: DriverCGO or DriverPureGo.
	// Default: DriverPureGo
	Driver string

	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// Compression is applied to encodings written from now on. Rows written
	// with another setting stay readable.
	// Default: CompressionNone
	Compression string
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Driver:       DriverPureGo,
		Path:         "data/rules.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
		Compression:  CompressionNone,
	}
}

// dsn builds the data source name, setting pragmas per connection in the
// syntax each driver understands.
func (c *SQLiteConfig) dsn() (string, error) {
	busy := c.BusyTimeout.Milliseconds()
	switch c.Driver {
	case DriverCGO:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", c.Path, busy)
		if c.WALMode {
			dsn += "&_journal_mode=WAL"
		}
		return dsn, nil
	case DriverPureGo:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", c.Path, busy)
		if c.WALMode {
			dsn += "&_pragma=journal_mode(WAL)"
		}
		return dsn, nil
	}
	return "", fmt.Errorf("unknown sqlite driver %q (want %q or %q)", c.Driver, DriverCGO, DriverPureGo)
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger

	saveStmt   *sql.Stmt
	loadStmt   *sql.Stmt
	deleteStmt *sql.Stmt
	listStmt   *sql.Stmt

	encoder *zstd.Encoder // nil unless writing compressed
	decoder *zstd.Decoder

	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteStore opens (creating if needed) a rules database.
func NewSQLiteStore(ctx context.Context, config *SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, ConnectionError("sqlite", "open", "", errors.New("database path cannot be empty"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rule.store.sqlite")

	dsn, err := config.dsn()
	if err != nil {
		return nil, ConnectionError("sqlite", "open", "", err)
	}

	db, err := sql.Open(config.Driver, dsn)
	if err != nil {
		return nil, ConnectionError("sqlite", "open", "", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}
	if err := s.initialize(ctx); err != nil {
		s.closeResources()
		return nil, err
	}

	logger.Info("SQLite store initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
		"compression", config.Compression,
	)
	return s, nil
}

func (s *SQLiteStore) initialize(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return ConnectionError("sqlite", "ping", "", err)
	}

	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return ConnectionError("sqlite", "create_schema", "", err)
	}
	if _, err := s.db.ExecContext(ctx, InsertSchemaVersion, SchemaVersion); err != nil {
		return ConnectionError("sqlite", "insert_schema_version", "", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return ConnectionError("sqlite", "get_schema_version", "", err)
	}
	if version != SchemaVersion {
		return ConnectionError("sqlite", "schema_version_mismatch", "",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	s.logger.Debug("schema version verified", "version", version)

	for _, p := range []struct {
		stmt **sql.Stmt
		sql  string
	}{
		{&s.saveStmt, saveRuleSQL},
		{&s.loadStmt, loadRuleSQL},
		{&s.deleteStmt, deleteRuleSQL},
		{&s.listStmt, listRulesSQL},
	} {
		stmt, err := s.db.PrepareContext(ctx, p.sql)
		if err != nil {
			return ConnectionError("sqlite", "prepare", "", err)
		}
		*p.stmt = stmt
	}

	switch s.config.Compression {
	case "", CompressionNone:
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return ConnectionError("sqlite", "open", "", err)
		}
		s.encoder = enc
	default:
		return ConnectionError("sqlite", "open", "", fmt.Errorf("unknown compression %q", s.config.Compression))
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		return ConnectionError("sqlite", "open", "", err)
	}
	s.decoder = dec
	return nil
}

// Save inserts or replaces a rule. The record ID and creation time of an
// existing rule are kept.
func (s *SQLiteStore) Save(ctx context.Context, name string, encoding []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	payload, compression := encoding, CompressionNone
	if s.encoder != nil {
		payload = s.encoder.EncodeAll(encoding, make([]byte, 0, len(encoding)))
		compression = CompressionZstd
	}

	now := time.Now().UnixNano()
	_, err := s.saveStmt.ExecContext(ctx,
		name,
		uuid.NewString(),
		payload,
		compression,
		Checksum(encoding),
		len(encoding),
		now,
		now,
	)
	if err != nil {
		return ConnectionError("sqlite", "save", name, err)
	}
	return nil
}

// Load returns a rule's encoding, decompressed and checked against its checksum.
func (s *SQLiteStore) Load(ctx context.Context, name string) ([]byte, error) {
	var (
		payload     []byte
		compression string
		checksum    string
	)
	err := s.loadStmt.QueryRowContext(ctx, name).Scan(&payload, &compression, &checksum)
	if err == sql.ErrNoRows {
		return nil, NotFound("sqlite", "load", name)
	}
	if err != nil {
		return nil, ConnectionError("sqlite", "load", name, err)
	}

	encoding := payload
	switch compression {
	case CompressionNone:
	case CompressionZstd:
		encoding, err = s.decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, ConnectionError("sqlite", "load", name, fmt.Errorf("decompress: %w", err))
		}
	default:
		return nil, ConnectionError("sqlite", "load", name, fmt.Errorf("unknown compression %q", compression))
	}

	if Checksum(encoding) != checksum {
		return nil, ConnectionError("sqlite", "load", name, errChecksum)
	}
	return encoding, nil
}

// Delete removes a rule.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	result, err := s.deleteStmt.ExecContext(ctx, name)
	if err != nil {
		return ConnectionError("sqlite", "delete", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return ConnectionError("sqlite", "delete", name, err)
	}
	if n == 0 {
		return NotFound("sqlite", "delete", name)
	}
	return nil
}

// List returns the metadata of every stored rule, sorted by name.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, ConnectionError("sqlite", "list", "", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r                Record
			created, updated int64
		)
		if err := rows.Scan(&r.Name, &r.ID, &r.Checksum, &r.Size, &created, &updated); err != nil {
			return nil, ConnectionError("sqlite", "list", "", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		r.UpdatedAt = time.Unix(0, updated).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ConnectionError("sqlite", "list", "", err)
	}
	return records, nil
}

// Close releases the database. It is safe to call more than once.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.closeResources()
		s.logger.Info("SQLite store closed")
	})
	return s.closeErr
}

func (s *SQLiteStore) closeResources() error {
	for _, stmt := range []*sql.Stmt{s.saveStmt, s.loadStmt, s.deleteStmt, s.listStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	if s.encoder != nil {
		s.encoder.Close()
	}
	if s.decoder != nil {
		s.decoder.Close()
	}
	if err := s.db.Close(); err != nil {
		return ConnectionError("sqlite", "close", "", err)
	}
	return nil
}
