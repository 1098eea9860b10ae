// Package main hosts the signframes CLI entrypoint and command graph.
//
// The Cobra-based command tree wires configuration, the state store, the
// dataset reader, ffmpeg decoding, and the pose estimator into an extraction
// run, and exposes read-only views of progress, datasets, and dependencies.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
