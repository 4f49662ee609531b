// Package registry caches decoded rules from a store.
//
// The Registry holds one immutable rule tree per stored name. Readers take
// a read lock only long enough to look up the map; Refresh builds a new map
// and swaps it in, so evaluations never see a partially reloaded set.
//
// Two triggers keep the cache current:
//
//   - FileWatcher reloads when rule files change in a file store directory
//   - Scheduler reloads on a cron schedule, for stores that cannot be watched
//
// Example:
//
//	reg := registry.New(st, registry.WithLogger(logger))
//	if _, err := reg.Refresh(ctx); err != nil {
//	    return err
//	}
//
//	sched := registry.NewScheduler("*/5 * * * *", reg.Refresh, logger)
//	if err := sched.Start(ctx); err != nil {
//	    return err
//	}
//	defer sched.Stop()
package registry
