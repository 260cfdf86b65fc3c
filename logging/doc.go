// Package logging provides a tiny abstraction over structured loggers so
// downstream code depends on a minimal interface (Logger) while the binary
// picks the backend: log/slog, or zerolog with optional rotated file output.
//
// Usage:
//
//	logger, closer, err := logging.New(logging.Config{Level: "info", Backend: "zerolog", Format: "console"})
//	if err != nil { ... }
//	defer closer.Close()
//	eng := engine.New(registry, engine.WithLogger(logger))
//
// Event names are dotted snake case keys ("engine.step.completed") followed by
// key/value pairs, so they read the same under every backend.
package logging
