package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"signframes/internal/services"
)

// ErrLocked reports that another process holds the state file.
var ErrLocked = errors.New("state file is locked by another run")

// State is the durable progress record. The JSON field names match the
// state.json document written by earlier versions of the extractor.
type State struct {
	RemainingTasks  []string `json:"remainingTasks"`
	CompletedTasks  []string `json:"completedTasks"`
	SkippedTasks    []string `json:"skippedTasks"`
	ImagesExtracted int      `json:"imagesExtracted"`
}

// UnmarshalJSON accepts task ids written as JSON strings or as integers.
// Integer ids are kept as their decimal text.
func (s *State) UnmarshalJSON(data []byte) error {
	var doc struct {
		RemainingTasks  []taskID `json:"remainingTasks"`
		CompletedTasks  []taskID `json:"completedTasks"`
		SkippedTasks    []taskID `json:"skippedTasks"`
		ImagesExtracted int      `json:"imagesExtracted"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*s = State{
		RemainingTasks:  taskStrings(doc.RemainingTasks),
		CompletedTasks:  taskStrings(doc.CompletedTasks),
		SkippedTasks:    taskStrings(doc.SkippedTasks),
		ImagesExtracted: doc.ImagesExtracted,
	}
	return nil
}

type taskID string

func (id *taskID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*id = taskID(text)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("task id %s is neither a string nor an integer", data)
	}
	*id = taskID(strconv.FormatInt(n, 10))
	return nil
}

func taskStrings(ids []taskID) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// Extracted returns the number of completed tasks that were not skipped.
func (s State) Extracted() int {
	return len(s.CompletedTasks) - len(s.SkippedTasks)
}

// Total returns the size of the task set.
func (s State) Total() int {
	return len(s.RemainingTasks) + len(s.CompletedTasks)
}

// Clone returns a deep copy with non-nil slices.
func (s State) Clone() State {
	return State{
		RemainingTasks:  cloneStrings(s.RemainingTasks),
		CompletedTasks:  cloneStrings(s.CompletedTasks),
		SkippedTasks:    cloneStrings(s.SkippedTasks),
		ImagesExtracted: s.ImagesExtracted,
	}
}

// Validate checks the structural invariants of a state record.
func (s State) Validate() error {
	if s.ImagesExtracted < 0 {
		return invalid("imagesExtracted is negative (%d)", s.ImagesExtracted)
	}
	remaining, err := uniqueSet("remainingTasks", s.RemainingTasks)
	if err != nil {
		return err
	}
	completed, err := uniqueSet("completedTasks", s.CompletedTasks)
	if err != nil {
		return err
	}
	if _, err := uniqueSet("skippedTasks", s.SkippedTasks); err != nil {
		return err
	}
	for id := range completed {
		if _, ok := remaining[id]; ok {
			return invalid("task %q is both remaining and completed", id)
		}
	}
	for _, id := range s.SkippedTasks {
		if _, ok := completed[id]; !ok {
			return invalid("skipped task %q is not completed", id)
		}
	}
	return nil
}

// InitResult describes what Initialize found.
type InitResult struct {
	// Resumed is true when a persisted state was loaded instead of created.
	Resumed bool
	// Added lists supplied tasks absent from the persisted state.
	Added []string
	// Missing lists persisted tasks absent from the supplied set.
	Missing []string
}

// Changed reports whether the supplied task set differs from the persisted one.
func (r InitResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Missing) > 0
}

// Store is the single writer of a State.
type Store interface {
	// Initialize loads persisted state, or creates and persists a fresh state
	// from tasks when none exists. An existing state is never replaced.
	Initialize(ctx context.Context, tasks []string) (InitResult, error)
	// Dequeue removes the next task from the in-memory queue. A task that
	// was dequeued but never marked is handed out again. It reports false
	// only when the queue is empty.
	Dequeue() (string, bool)
	// MarkSkipped records the in-flight task as skipped and completed.
	MarkSkipped(id string) error
	// MarkCompleted records the in-flight task as completed.
	MarkCompleted(id string) error
	// AddImages increases the image counter.
	AddImages(n int) error
	// Persist makes the current state durable.
	Persist(ctx context.Context) error
	// Snapshot returns a copy of the durable view of the state.
	Snapshot() State
	// Path returns the backing file.
	Path() string
	Close() error
}

func invalid(format string, args ...any) error {
	return services.Wrap(services.ErrValidation, "state", "validate", fmt.Sprintf(format, args...), nil)
}

func uniqueSet(field string, ids []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := set[id]; dup {
			return nil, invalid("duplicate task %q in %s", id, field)
		}
		set[id] = struct{}{}
	}
	return set, nil
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// dedupe drops repeated ids while keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
