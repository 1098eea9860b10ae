// Package services defines shared utilities consumed by the extraction
// pipeline and its external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so the CLI can tell
//     configuration mistakes apart from tool and I/O failures.
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error classification, observability) stays uniform across the pipeline.
package services
