package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mercator-hq/ruleengine/pkg/rule/ast"
	"mercator-hq/ruleengine/pkg/rule/codec"
	"mercator-hq/ruleengine/pkg/store"
)

// Entry is a cached rule.
type Entry struct {
	Name     string
	Rule     *ast.Node
	Checksum string // Checksum of the encoding the rule was decoded from
	LoadedAt time.Time
}

// ReloadStats describes one Refresh.
type ReloadStats struct {
	Loaded   int              // Rules in the registry after the refresh
	Decoded  int              // Rules loaded and decoded from the store
	Reused   int              // Rules whose checksum was unchanged
	Removed  int              // Rules no longer in the store
	Failed   map[string]error // Rules skipped because they could not be loaded or decoded
	Duration time.Duration
}

// Registry is a thread-safe cache of decoded rules.
type Registry struct {
	store    store.Store
	logger   *slog.Logger
	onReload func(*ReloadStats)

	refreshMu sync.Mutex // serializes Refresh

	mu       sync.RWMutex
	entries  map[string]*Entry
	version  string
	loadTime time.Time
	// writes holds the names passed to Put or Remove since the last
	// Refresh snapshot; Refresh keeps those entries as they are now.
	writes map[string]struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReloadHook registers a function called after every Refresh.
func WithReloadHook(fn func(*ReloadStats)) Option {
	return func(r *Registry) {
		r.onReload = fn
	}
}

// New creates an empty registry backed by s.
func New(s store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:   s,
		logger:  slog.Default(),
		entries: make(map[string]*Entry),
		writes:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "rule.registry")
	r.version = computeVersion(r.entries)
	return r
}

// Get returns the cached rule for name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e, ok
}

// Put caches a rule, replacing any entry with the same name.
func (r *Registry) Put(name string, rule *ast.Node, checksum string) {
	entry := &Entry{Name: name, Rule: rule, Checksum: checksum, LoadedAt: time.Now()}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*Entry, len(r.entries)+1)
	for k, v := range r.entries {
		next[k] = v
	}
	next[name] = entry
	r.writes[name] = struct{}{}
	r.swap(next)
}

// Remove drops a cached rule. It reports whether the rule was cached.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.writes[name] = struct{}{}
	if _, ok := r.entries[name]; !ok {
		return false
	}
	next := make(map[string]*Entry, len(r.entries))
	for k, v := range r.entries {
		if k != name {
			next[k] = v
		}
	}
	r.swap(next)
	return true
}

// Names returns the cached rule names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of cached rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Version identifies the cached rule set. It changes whenever a rule is
// added, removed or changes content.
func (r *Registry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// LoadTime returns when the rule set last changed.
func (r *Registry) LoadTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadTime
}

// Refresh reloads every rule in the store. Rules with an unchanged checksum
// keep their cached tree; rules that fail to load or decode are skipped,
// keeping their previous entry if there is one, and reported in the stats.
// An error is returned only when the store cannot be listed, in which case
// the cache is left untouched. Rules passed to Put or Remove while a
// refresh runs keep the state those calls gave them.
func (r *Registry) Refresh(ctx context.Context) (*ReloadStats, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	start := time.Now()
	records, err := r.store.List(ctx)
	if err != nil {
		r.logger.Error("rule refresh failed", "error", err)
		return nil, fmt.Errorf("list rules: %w", err)
	}

	r.mu.Lock()
	current := r.entries
	r.writes = make(map[string]struct{})
	r.mu.Unlock()

	stats := &ReloadStats{Failed: make(map[string]error)}
	next := make(map[string]*Entry, len(records))
	for _, rec := range records {
		if e, ok := current[rec.Name]; ok && e.Checksum == rec.Checksum {
			next[rec.Name] = e
			stats.Reused++
			continue
		}

		entry, err := r.load(ctx, rec.Name)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted between List and Load
			continue
		}
		if err != nil {
			stats.Failed[rec.Name] = err
			r.logger.Warn("skipping rule", "name", rec.Name, "error", err)
			if e, ok := current[rec.Name]; ok {
				next[rec.Name] = e
			}
			continue
		}
		next[rec.Name] = entry
		stats.Decoded++
	}
	for name := range current {
		if _, ok := next[name]; !ok {
			stats.Removed++
		}
	}

	r.mu.Lock()
	for name := range r.writes {
		if e, ok := r.entries[name]; ok {
			next[name] = e
		} else {
			delete(next, name)
		}
	}
	r.writes = make(map[string]struct{})
	r.swap(next)
	r.mu.Unlock()

	stats.Loaded = len(next)
	stats.Duration = time.Since(start)
	r.logger.Info("rules refreshed",
		"loaded", stats.Loaded,
		"decoded", stats.Decoded,
		"reused", stats.Reused,
		"removed", stats.Removed,
		"failed", len(stats.Failed),
		"duration_ms", stats.Duration.Milliseconds(),
	)
	if r.onReload != nil {
		r.onReload(stats)
	}
	return stats, nil
}

func (r *Registry) load(ctx context.Context, name string) (*Entry, error) {
	enc, err := r.store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	rule, err := codec.Deserialize(enc)
	if err != nil {
		return nil, err
	}
	return &Entry{
		Name:     name,
		Rule:     rule,
		Checksum: store.Checksum(enc),
		LoadedAt: time.Now(),
	}, nil
}

// swap installs a new entry map. Callers hold mu.
func (r *Registry) swap(next map[string]*Entry) {
	version := computeVersion(next)
	if version != r.version {
		r.loadTime = time.Now()
	}
	r.entries = next
	r.version = version
}

// computeVersion hashes the sorted names and checksums.
func computeVersion(entries map[string]*Entry) string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(entries[name].Checksum))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
