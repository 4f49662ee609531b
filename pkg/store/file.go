package store

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileExt is the extension of rule files written by FileStore.
const FileExt = ".json"

// ruleNamespace derives stable record IDs for file-backed rules, which have
// no place to keep a random one.
var ruleNamespace = uuid.MustParse("6f1c2a6e-4b53-4d0e-9a57-2f8c2d7e5b10")

// FileStore implements Store with one file per rule in a directory.
// Writes go to a temporary file that is renamed into place, so readers
// never observe a partial encoding.
type FileStore struct {
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewFileStore creates a store in dir, creating the directory if needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, ConnectionError("file", "open", "", errors.New("directory cannot be empty"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ConnectionError("file", "open", "", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With("component", "rule.store.file"),
	}, nil
}

// Dir returns the directory holding the rule files.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file a rule is stored in.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+FileExt)
}

// Save writes encoding to <dir>/<name>.json.
func (s *FileStore) Save(ctx context.Context, name string, encoding []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctxErr(ctx, "file", "save", name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return ConnectionError("file", "save", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(encoding); err != nil {
		tmp.Close()
		return ConnectionError("file", "save", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ConnectionError("file", "save", name, err)
	}
	if err := tmp.Close(); err != nil {
		return ConnectionError("file", "save", name, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		return ConnectionError("file", "save", name, err)
	}

	s.logger.Debug("rule saved", "name", name, "size", len(encoding))
	return nil
}

// Load reads <dir>/<name>.json.
func (s *FileStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, NotFound("file", "load", name)
	}
	if err := ctxErr(ctx, "file", "load", name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NotFound("file", "load", name)
	}
	if err != nil {
		return nil, ConnectionError("file", "load", name, err)
	}
	return data, nil
}

// Delete removes <dir>/<name>.json.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return NotFound("file", "delete", name)
	}
	if err := ctxErr(ctx, "file", "delete", name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return NotFound("file", "delete", name)
	}
	if err != nil {
		return ConnectionError("file", "delete", name, err)
	}
	return nil
}

// List returns a record for every rule file. IDs are derived from the rule
// name, and CreatedAt is the modification time since the file system does
// not track creation.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	if err := ctxErr(ctx, "file", "list", ""); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, ConnectionError("file", "list", "", err)
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		name, ok := RuleName(entry.Name())
		if !ok || entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable rule file", "file", entry.Name(), "error", err)
			continue
		}
		modified := info.ModTime().UTC()
		records = append(records, Record{
			Name:      name,
			ID:        uuid.NewSHA1(ruleNamespace, []byte(name)).String(),
			Checksum:  Checksum(data),
			Size:      len(data),
			CreatedAt: modified,
			UpdatedAt: modified,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records, nil
}

// Close is a no-op; FileStore holds no open handles.
func (s *FileStore) Close() error {
	return nil
}

// RuleName returns the rule name for a file name written by FileStore,
// and false for anything else (temporary files, other extensions).
func RuleName(fileName string) (string, bool) {
	if !strings.HasSuffix(fileName, FileExt) {
		return "", false
	}
	name := strings.TrimSuffix(fileName, FileExt)
	if ValidateName(name) != nil {
		return "", false
	}
	return name, true
}
