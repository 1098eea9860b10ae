// Package video decodes short videos into numbered PNG frames with ffmpeg.
//
// A Reader owns a temporary directory holding frame-1.png … frame-N.png and
// exposes them through a zero-based index. Callers must Close the reader to
// release the disk space; Close is safe to call more than once.
package video
