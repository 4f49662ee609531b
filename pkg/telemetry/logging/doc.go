// Package logging builds the structured loggers used across the rule engine.
//
// Loggers are plain *slog.Logger values. New wraps a JSON or text handler in
// a RedactingHandler which
//   - masks values logged under sensitive keys (configured record fields
//     such as salary, plus built-ins like password and token)
//   - masks API keys, emails and bearer tokens inside string values
//   - adds the rule name, operation and active trace/span IDs from the
//     context passed to the *Context logging methods
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:        "info",
//	    Format:       "json",
//	    RedactFields: []string{"salary"},
//	})
//
//	ctx = logging.WithRule(ctx, "senior-sales")
//	logger.InfoContext(ctx, "rule evaluated", "salary", 90000) // salary=***
package logging
