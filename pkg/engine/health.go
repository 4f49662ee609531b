package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mercator-hq/ruleengine/pkg/telemetry/health"
)

// RegisterHealthChecks adds the engine's component checks to checker:
// "store" lists the store, and "registry", when enabled, fails if the last
// refresh skipped rules.
func (e *Engine) RegisterHealthChecks(checker *health.Checker) {
	checker.Register("store", func(ctx context.Context) error {
		_, err := e.store.List(ctx)
		return err
	})

	if e.registry == nil {
		return
	}
	checker.Register("registry", func(ctx context.Context) error {
		stats := e.LastReload()
		if stats == nil {
			var err error
			if stats, err = e.Refresh(ctx); err != nil {
				return err
			}
		}
		if len(stats.Failed) == 0 {
			return nil
		}
		names := make([]string, 0, len(stats.Failed))
		for name := range stats.Failed {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("%d rules could not be loaded: %s", len(names), strings.Join(names, ", "))
	})
}
