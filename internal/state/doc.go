// Package state persists extraction progress so an interrupted run resumes
// where it stopped.
//
// A State holds a FIFO queue of remaining task identifiers, append-only logs
// of completed and skipped tasks, and a running count of images written.
// The Store interface brackets each task: Dequeue hands out the next task,
// MarkCompleted or MarkSkipped records its outcome, and Persist makes the
// result durable. Until a dequeued task is marked, every snapshot still lists
// it as remaining, so a crash reprocesses at most that one task.
//
// Two backends exist: a JSON document replaced atomically on every persist,
// and a SQLite database rewritten in a single transaction. Both hold an
// exclusive lock file for as long as the store is open.
package state
