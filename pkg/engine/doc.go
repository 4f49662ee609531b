// Package engine is the rule engine's entry point: it defines rules from
// text, stores their encodings, and evaluates stored rules against records.
//
// Every operation runs parse, encode, store and decode steps from the rule
// and store packages, and reports to the configured logger, metrics
// collector and tracer. With WithRegistry, decoded trees are cached by name
// and shared by concurrent evaluations; trees are immutable, so no locking
// happens beyond the registry lookup.
//
//	st, _ := store.Open(ctx, store.Options{Backend: store.BackendMemory}, logger)
//	eng, _ := engine.New(&cfg.Engine, st, engine.WithLogger(logger), engine.WithRegistry())
//
//	eng.Define(ctx, "senior-sales", "age > 30 AND department == 'Sales'")
//	res, err := eng.Evaluate(ctx, "senior-sales", record)
package engine
