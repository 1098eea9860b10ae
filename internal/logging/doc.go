// Package logging assembles the structured slog loggers used by signframes.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag every line with the task being processed, the
// pipeline stage, and the per-task correlation ID. A run-scoped session ID is
// attached to every record so interleaved log files can be split per run.
// NewNop returns a logger that discards everything; it backs the
// logging.enabled = false switch and most tests.
package logging
