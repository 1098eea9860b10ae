// Package preflight provides readiness checks for the filesystem paths,
// external binaries, and pose service that an extraction run depends on.
//
// These checks run in two contexts:
//   - "signframes run" calls RunAll before touching the state file and refuses
//     to start when a check fails, so a doomed run never dequeues a task.
//   - "signframes deps" uses CheckSystemDeps to display binary availability.
//
// Each check is gated by its config value; unused backends are skipped.
package preflight
