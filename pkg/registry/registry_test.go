package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mercator-hq/ruleengine/pkg/rule/ast"
	"mercator-hq/ruleengine/pkg/rule/codec"
	"mercator-hq/ruleengine/pkg/rule/parser"
	"mercator-hq/ruleengine/pkg/store"
)

func saveRule(t *testing.T, s store.Store, name, text string) {
	t.Helper()
	node, err := parser.NewParser().Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", text, err)
	}
	enc, err := codec.Serialize(node)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if err := s.Save(context.Background(), name, enc); err != nil {
		t.Fatalf("Save(%q) error = %v", name, err)
	}
}

func TestRegistry_Refresh(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	saveRule(t, s, "senior", "age > 30")
	saveRule(t, s, "sales", "department == 'Sales'")

	reg := New(s)
	emptyVersion := reg.Version()

	stats, err := reg.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if stats.Loaded != 2 || stats.Decoded != 2 || stats.Reused != 0 {
		t.Errorf("stats = %+v, want 2 loaded, 2 decoded", stats)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
	if reg.Version() == emptyVersion {
		t.Error("Version() unchanged after loading rules")
	}

	names := reg.Names()
	if len(names) != 2 || names[0] != "sales" || names[1] != "senior" {
		t.Errorf("Names() = %v, want [sales senior]", names)
	}

	entry, ok := reg.Get("senior")
	if !ok {
		t.Fatal("Get(senior) not found")
	}
	want := ast.Condition("age", ast.CmpGreater, ast.IntValue(30))
	if !ast.Equal(entry.Rule, want) {
		t.Errorf("Get(senior).Rule = %s, want %s", entry.Rule, want)
	}
}

func TestRegistry_RefreshReusesUnchanged(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	saveRule(t, s, "a", "x > 1")
	saveRule(t, s, "b", "y > 1")

	reg := New(s)
	if _, err := reg.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	before, _ := reg.Get("a")
	version := reg.Version()

	stats, err := reg.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Reused != 2 || stats.Decoded != 0 {
		t.Errorf("stats = %+v, want 2 reused", stats)
	}
	after, _ := reg.Get("a")
	if before != after {
		t.Error("unchanged rule was decoded again")
	}
	if reg.Version() != version {
		t.Error("Version() changed without rule changes")
	}

	// Change one rule, delete the other
	saveRule(t, s, "a", "x > 2")
	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	stats, err = reg.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Decoded != 1 || stats.Removed != 1 || stats.Loaded != 1 {
		t.Errorf("stats = %+v, want 1 decoded, 1 removed, 1 loaded", stats)
	}
	if _, ok := reg.Get("b"); ok {
		t.Error("deleted rule still cached")
	}
	if reg.Version() == version {
		t.Error("Version() unchanged after rule changes")
	}
}

func TestRegistry_RefreshSkipsBadRules(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	saveRule(t, s, "good", "x > 1")
	saveRule(t, s, "flaky", "y > 1")

	reg := New(s)
	if _, err := reg.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	// A corrupted update keeps the previous tree
	if err := s.Save(ctx, "flaky", []byte(`{"kind":"operator","op":"AND","left":{}}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "broken", []byte(`not json`)); err != nil {
		t.Fatal(err)
	}

	stats, err := reg.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(stats.Failed) != 2 {
		t.Fatalf("Failed = %v, want 2 entries", stats.Failed)
	}
	var de *codec.DecodeError
	if !errors.As(stats.Failed["broken"], &de) || de.Kind != codec.KindMalformed {
		t.Errorf("Failed[broken] = %v, want malformed DecodeError", stats.Failed["broken"])
	}

	if _, ok := reg.Get("broken"); ok {
		t.Error("undecodable rule was cached")
	}
	entry, ok := reg.Get("flaky")
	if !ok {
		t.Fatal("previous entry for flaky dropped")
	}
	if !ast.Equal(entry.Rule, ast.Condition("y", ast.CmpGreater, ast.IntValue(1))) {
		t.Errorf("flaky rule = %s, want previous tree", entry.Rule)
	}
	if _, ok := reg.Get("good"); !ok {
		t.Error("good rule missing")
	}
}

func TestRegistry_RefreshListError(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	saveRule(t, s, "a", "x > 1")

	reg := New(s)
	if _, err := reg.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	_, err := reg.Refresh(ctx)
	if !errors.Is(err, store.ErrConnection) {
		t.Fatalf("Refresh() error = %v, want connection error", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want cache untouched", reg.Len())
	}
}

func TestRegistry_PutRemove(t *testing.T) {
	reg := New(store.NewMemoryStore())
	rule := ast.Condition("x", ast.CmpEqual, ast.BoolValue(true))

	reg.Put("flag", rule, "abc")
	entry, ok := reg.Get("flag")
	if !ok || entry.Rule != rule || entry.Checksum != "abc" {
		t.Fatalf("Get(flag) = %+v, %v", entry, ok)
	}
	v1 := reg.Version()

	reg.Put("flag", rule, "def")
	if reg.Version() == v1 {
		t.Error("Version() unchanged after checksum change")
	}

	if !reg.Remove("flag") {
		t.Error("Remove(flag) = false, want true")
	}
	if reg.Remove("flag") {
		t.Error("second Remove(flag) = true, want false")
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}

func TestRegistry_ReloadHook(t *testing.T) {
	s := store.NewMemoryStore()
	saveRule(t, s, "a", "x > 1")

	var got *ReloadStats
	reg := New(s, WithReloadHook(func(stats *ReloadStats) { got = stats }))
	if _, err := reg.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Loaded != 1 {
		t.Errorf("hook stats = %+v, want 1 loaded", got)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	saveRule(t, s, "a", "x > 1")

	reg := New(s)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := reg.Refresh(ctx); err != nil {
				t.Errorf("Refresh() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Get("a")
				reg.Names()
				reg.Version()
			}
		}()
	}
	wg.Wait()

	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

// blockingStore pauses Load of one rule until release is closed.
type blockingStore struct {
	store.Store
	name    string
	reached chan struct{}
	release chan struct{}
}

func (s *blockingStore) Load(ctx context.Context, name string) ([]byte, error) {
	if name == s.name {
		close(s.reached)
		<-s.release
	}
	return s.Store.Load(ctx, name)
}

func TestRegistry_RefreshKeepsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	saveRule(t, mem, "changed", "a > 10")
	saveRule(t, mem, "deleted", "b > 10")

	reg := New(mem)
	if _, err := reg.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	saveRule(t, mem, "slow", "c > 10")
	bs := &blockingStore{Store: mem, name: "slow", reached: make(chan struct{}), release: make(chan struct{})}
	reg.store = bs

	done := make(chan error, 1)
	go func() {
		_, err := reg.Refresh(ctx)
		done <- err
	}()
	<-bs.reached

	// Writes made while the refresh is loading "slow"
	saveRule(t, mem, "changed", "a < 10")
	newRule := ast.Condition("a", ast.CmpLess, ast.IntValue(10))
	reg.Put("changed", newRule, "new")

	if err := mem.Delete(ctx, "deleted"); err != nil {
		t.Fatal(err)
	}
	reg.Remove("deleted")

	saveRule(t, mem, "added", "d > 10")
	added := ast.Condition("d", ast.CmpGreater, ast.IntValue(10))
	reg.Put("added", added, "added")

	close(bs.release)
	if err := <-done; err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if e, ok := reg.Get("changed"); !ok || e.Rule != newRule {
		t.Errorf("Get(changed) = %v, want the rule Put during the refresh", e)
	}
	if _, ok := reg.Get("deleted"); ok {
		t.Error("rule removed during the refresh came back")
	}
	if e, ok := reg.Get("added"); !ok || e.Rule != added {
		t.Errorf("Get(added) = %v, want the rule Put during the refresh", e)
	}
	if _, ok := reg.Get("slow"); !ok {
		t.Error("Get(slow) not found after refresh")
	}
}
