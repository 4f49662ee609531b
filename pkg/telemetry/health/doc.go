// Package health runs health checks against the rule engine's components.
//
// Checks are plain functions registered under a component name. Run
// executes them concurrently, each under its own timeout, and aggregates
// the results into a Report. rulectl's doctor command prints the report
// and exits non-zero when any check fails.
//
//	checker := health.New(2 * time.Second)
//	checker.Register("store", func(ctx context.Context) error {
//	    _, err := st.List(ctx)
//	    return err
//	})
//	report := checker.Run(ctx)
//	if !report.Healthy() {
//	    ...
//	}
package health
