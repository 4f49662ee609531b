package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/ruleengine/pkg/store"
)

func TestShouldProcessEvent(t *testing.T) {
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"rule write", fsnotify.Event{Name: "/rules/senior.json", Op: fsnotify.Write}, true},
		{"rule create", fsnotify.Event{Name: "/rules/senior.json", Op: fsnotify.Create}, true},
		{"rule remove", fsnotify.Event{Name: "/rules/senior.json", Op: fsnotify.Remove}, true},
		{"chmod only", fsnotify.Event{Name: "/rules/senior.json", Op: fsnotify.Chmod}, false},
		{"temp file", fsnotify.Event{Name: "/rules/.senior.json.123.tmp", Op: fsnotify.Create}, false},
		{"hidden rule", fsnotify.Event{Name: "/rules/.senior.json", Op: fsnotify.Write}, false},
		{"other extension", fsnotify.Event{Name: "/rules/notes.txt", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldProcessEvent(tt.event); got != tt.want {
				t.Errorf("shouldProcessEvent(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestFileWatcher_RefreshesRegistry(t *testing.T) {
	dir := t.TempDir()
	fs, err := store.NewFileStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	reg := New(fs)

	config := DefaultFileWatcherConfig()
	config.Dir = dir
	config.DebounceInterval = 50 * time.Millisecond

	watcher, err := NewFileWatcher(config, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	errCh := make(chan error, 1)
	go func() {
		errCh <- watcher.Watch(ctx, func(ctx context.Context) error {
			reloads.Add(1)
			_, err := reg.Refresh(ctx)
			return err
		})
	}()

	// Let the watcher register the directory
	time.Sleep(100 * time.Millisecond)

	saveRule(t, fs, "senior", "age > 30")
	saveRule(t, fs, "sales", "department == 'Sales'")

	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if reg.Len() != 2 {
		t.Fatalf("registry has %d rules after file changes, want 2", reg.Len())
	}

	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
	if reloads.Load() == 0 {
		t.Error("no reloads triggered")
	}
}

func TestFileWatcher_MissingDir(t *testing.T) {
	config := DefaultFileWatcherConfig()
	config.Dir = filepath.Join(t.TempDir(), "missing")

	watcher, err := NewFileWatcher(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	err = watcher.Watch(context.Background(), func(context.Context) error { return nil })
	if err == nil {
		t.Error("Watch() on missing directory succeeded, want error")
	}
}

func TestFileWatcher_ContextCancel(t *testing.T) {
	config := DefaultFileWatcherConfig()
	config.Dir = t.TempDir()

	watcher, err := NewFileWatcher(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(ctx, func(context.Context) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	config := DefaultFileWatcherConfig()
	config.Dir = dir
	config.DebounceInterval = 20 * time.Millisecond

	watcher, err := NewFileWatcher(config, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	go func() {
		_ = watcher.Watch(ctx, func(context.Context) error {
			reloads.Add(1)
			return nil
		})
	}()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)

	if err := watcher.Stop(); err != nil {
		t.Fatal(err)
	}
	if n := reloads.Load(); n != 0 {
		t.Errorf("reloads = %d, want 0", n)
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 5; i++ {
		n := int32(i)
		d.Trigger(func() {
			calls.Add(1)
			last.Store(n)
		})
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("last callback = %d, want 5", got)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("calls = %d after Stop, want 0", got)
	}
}
