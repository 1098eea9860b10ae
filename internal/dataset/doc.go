// Package dataset enumerates extraction tasks and resolves them to video
// definitions.
//
// Two layouts are supported. The NZSL layout is a checkout of the NZSL
// dictionary export: one JSON document per sign under data/, with videos
// under video/<nzsl_id>/. The folders layout is a tree of label directories
// that each hold video files. Both map their records onto Definition
// explicitly; unknown document fields are ignored.
package dataset
