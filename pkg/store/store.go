package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Store persists rule encodings under unique names.
// Implementations are safe for concurrent use.
type Store interface {
	// Save stores encoding under name, replacing any previous encoding.
	Save(ctx context.Context, name string, encoding []byte) error

	// Load returns the encoding stored under name.
	Load(ctx context.Context, name string) ([]byte, error)

	// Delete removes the rule stored under name.
	Delete(ctx context.Context, name string) error

	// List returns the metadata of every stored rule, sorted by name.
	List(ctx context.Context) ([]Record, error)

	// Close releases the backend's resources.
	Close() error
}

// Record describes a stored rule.
type Record struct {
	Name      string
	ID        string // UUID assigned when the rule was first saved
	Checksum  string // Hex SHA-256 of the encoding
	Size      int    // Encoding size in bytes
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaxNameLength is the longest rule name accepted.
const MaxNameLength = 128

// ValidateName checks that name is usable by every backend: 1 to 128
// characters from [A-Za-z0-9._-], starting with a letter or digit.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, MaxNameLength)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case (c == '-' || c == '_' || c == '.') && i > 0:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// Checksum returns the hex SHA-256 of an encoding.
func Checksum(encoding []byte) string {
	sum := sha256.Sum256(encoding)
	return hex.EncodeToString(sum[:])
}

func ctxErr(ctx context.Context, backend, operation, name string) error {
	if err := ctx.Err(); err != nil {
		return ConnectionError(backend, operation, name, err)
	}
	return nil
}
