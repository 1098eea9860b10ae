package state_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"signframes/internal/services"
	"signframes/internal/state"
)

type opener func(t *testing.T, path string) state.Store

var backends = map[string]struct {
	file string
	open opener
}{
	"json": {file: "state.json", open: func(t *testing.T, path string) state.Store {
		t.Helper()
		st, err := state.OpenJSON(path)
		if err != nil {
			t.Fatalf("OpenJSON: %v", err)
		}
		return st
	}},
	"sqlite": {file: "state.db", open: func(t *testing.T, path string) state.Store {
		t.Helper()
		st, err := state.OpenSQLite(context.Background(), path)
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		return st
	}},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, path string, open opener)) {
	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, filepath.Join(t.TempDir(), b.file), b.open)
		})
	}
}

// drain completes every remaining task, skipping those in skip.
func drain(t *testing.T, st state.Store, skip map[string]bool, imagesPerTask int) {
	t.Helper()
	ctx := context.Background()
	for {
		id, ok := st.Dequeue()
		if !ok {
			return
		}
		if skip[id] {
			if err := st.MarkSkipped(id); err != nil {
				t.Fatal(err)
			}
		} else {
			if err := st.AddImages(imagesPerTask); err != nil {
				t.Fatal(err)
			}
			if err := st.MarkCompleted(id); err != nil {
				t.Fatal(err)
			}
		}
		if err := st.Persist(ctx); err != nil {
			t.Fatal(err)
		}
		if err := st.Snapshot().Validate(); err != nil {
			t.Fatalf("invariant broken after %s: %v", id, err)
		}
	}
}

func TestInitializeCreatesFreshState(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		st := open(t, path)
		defer st.Close()

		res, err := st.Initialize(context.Background(), []string{"1", "2", "2", "3"})
		if err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		if res.Resumed || res.Changed() {
			t.Fatalf("unexpected init result %+v", res)
		}
		snap := st.Snapshot()
		if !reflect.DeepEqual(snap.RemainingTasks, []string{"1", "2", "3"}) {
			t.Fatalf("remaining = %v", snap.RemainingTasks)
		}
		if len(snap.CompletedTasks) != 0 || len(snap.SkippedTasks) != 0 || snap.ImagesExtracted != 0 {
			t.Fatalf("unexpected fresh state %+v", snap)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("fresh state should be persisted immediately: %v", err)
		}
	})
}

func TestRunToCompletionThenResumeIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		ctx := context.Background()
		tasks := []string{"1", "2", "3", "4"}

		st := open(t, path)
		if _, err := st.Initialize(ctx, tasks); err != nil {
			t.Fatal(err)
		}
		drain(t, st, map[string]bool{"2": true}, 5)
		final := st.Snapshot()
		if err := st.Close(); err != nil {
			t.Fatal(err)
		}

		if final.ImagesExtracted != 15 || final.Extracted() != 3 || len(final.SkippedTasks) != 1 {
			t.Fatalf("unexpected final state %+v", final)
		}
		if !reflect.DeepEqual(final.CompletedTasks, tasks) {
			t.Fatalf("completed order = %v", final.CompletedTasks)
		}

		again := open(t, path)
		defer again.Close()
		res, err := again.Initialize(ctx, tasks)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Resumed || res.Changed() {
			t.Fatalf("unexpected resume result %+v", res)
		}
		if _, ok := again.Dequeue(); ok {
			t.Fatal("expected nothing to dequeue after completion")
		}
		if got := again.Snapshot(); !reflect.DeepEqual(got, final) {
			t.Fatalf("resumed state %+v differs from final %+v", got, final)
		}
	})
}

func TestCrashMidTaskReprocessesOnlyThatTask(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		ctx := context.Background()
		st := open(t, path)
		if _, err := st.Initialize(ctx, []string{"a", "b", "c"}); err != nil {
			t.Fatal(err)
		}
		id, _ := st.Dequeue()
		if err := st.AddImages(4); err != nil {
			t.Fatal(err)
		}
		if err := st.MarkCompleted(id); err != nil {
			t.Fatal(err)
		}
		if err := st.Persist(ctx); err != nil {
			t.Fatal(err)
		}

		// "b" is in flight when the process dies: images written for it were
		// never added to the counter and it was never persisted as completed.
		inFlight, _ := st.Dequeue()
		if inFlight != "b" {
			t.Fatalf("expected b in flight, got %q", inFlight)
		}
		if snap := st.Snapshot(); snap.RemainingTasks[0] != "b" {
			t.Fatalf("in-flight task must stay remaining in snapshots: %v", snap.RemainingTasks)
		}
		if err := st.Persist(ctx); err != nil {
			t.Fatal(err)
		}
		_ = st.Close()

		resumed := open(t, path)
		defer resumed.Close()
		if _, err := resumed.Initialize(ctx, []string{"a", "b", "c"}); err != nil {
			t.Fatal(err)
		}
		snap := resumed.Snapshot()
		if !reflect.DeepEqual(snap.RemainingTasks, []string{"b", "c"}) {
			t.Fatalf("remaining after crash = %v", snap.RemainingTasks)
		}
		drain(t, resumed, nil, 4)
		final := resumed.Snapshot()
		if final.ImagesExtracted != 12 {
			t.Fatalf("images = %d, want one pass per task (12)", final.ImagesExtracted)
		}
		if !reflect.DeepEqual(final.CompletedTasks, []string{"a", "b", "c"}) {
			t.Fatalf("completed = %v", final.CompletedTasks)
		}
	})
}

func TestResumeReportsChangedTaskSet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		ctx := context.Background()
		st := open(t, path)
		if _, err := st.Initialize(ctx, []string{"1", "2", "3"}); err != nil {
			t.Fatal(err)
		}
		_ = st.Close()

		again := open(t, path)
		defer again.Close()
		res, err := again.Initialize(ctx, []string{"2", "3", "4", "5"})
		if err != nil {
			t.Fatal(err)
		}
		if !res.Resumed || !res.Changed() {
			t.Fatalf("expected changed resume, got %+v", res)
		}
		if !reflect.DeepEqual(res.Added, []string{"4", "5"}) || !reflect.DeepEqual(res.Missing, []string{"1"}) {
			t.Fatalf("diff = added %v missing %v", res.Added, res.Missing)
		}
		if got := again.Snapshot().RemainingTasks; !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
			t.Fatalf("persisted state must stay authoritative, remaining = %v", got)
		}
	})
}

func TestMarkRequiresInFlightTask(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		st := open(t, path)
		defer st.Close()
		if _, err := st.Initialize(context.Background(), []string{"1", "2"}); err != nil {
			t.Fatal(err)
		}
		if err := st.MarkCompleted("1"); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error before dequeue, got %v", err)
		}
		id, _ := st.Dequeue()
		if again, ok := st.Dequeue(); !ok || again != id {
			t.Fatalf("expected the unfinished task %q again, got %q %v", id, again, ok)
		}
		if err := st.MarkSkipped("2"); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for wrong id, got %v", err)
		}
		if err := st.MarkSkipped(id); err != nil {
			t.Fatal(err)
		}
		if err := st.MarkCompleted(id); err == nil {
			t.Fatal("expected a task to be recorded only once")
		}
		if err := st.AddImages(-1); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected negative count rejection, got %v", err)
		}
	})
}

func TestInitializeRequeuesUnfinishedTask(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		ctx := context.Background()
		st := open(t, path)
		defer st.Close()
		tasks := []string{"a", "b"}
		if _, err := st.Initialize(ctx, tasks); err != nil {
			t.Fatal(err)
		}
		if id, _ := st.Dequeue(); id != "a" {
			t.Fatalf("expected a, got %q", id)
		}

		// A second pass over the same store starts from the durable view.
		if _, err := st.Initialize(ctx, tasks); err != nil {
			t.Fatal(err)
		}
		if got := st.Snapshot().RemainingTasks; !reflect.DeepEqual(got, tasks) {
			t.Fatalf("remaining = %v, want %v", got, tasks)
		}
		for _, want := range tasks {
			id, ok := st.Dequeue()
			if !ok || id != want {
				t.Fatalf("Dequeue = %q %v, want %q", id, ok, want)
			}
			if err := st.MarkCompleted(id); err != nil {
				t.Fatal(err)
			}
		}
		if _, ok := st.Dequeue(); ok {
			t.Fatal("expected an empty queue")
		}
		if got := st.Snapshot().CompletedTasks; !reflect.DeepEqual(got, tasks) {
			t.Fatalf("completed = %v, want %v", got, tasks)
		}
	})
}

func TestSecondOpenIsLocked(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		st := open(t, path)
		var err error
		if filepath.Ext(path) == ".db" {
			_, err = state.OpenSQLite(context.Background(), path)
		} else {
			_, err = state.OpenJSON(path)
		}
		if !errors.Is(err, state.ErrLocked) {
			t.Fatalf("expected ErrLocked, got %v", err)
		}
		if err := state.Remove(path, false); !errors.Is(err, state.ErrLocked) {
			t.Fatalf("expected Remove to respect the lock, got %v", err)
		}
		if err := st.Close(); err != nil {
			t.Fatal(err)
		}
		reopened := open(t, path)
		_ = reopened.Close()
	})
}

func TestRemoveKeepsBackup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		st := open(t, path)
		if _, err := st.Initialize(context.Background(), []string{"1"}); err != nil {
			t.Fatal(err)
		}
		_ = st.Close()

		if err := state.Remove(path, true); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("state file still present: %v", err)
		}
		if _, err := os.Stat(path + ".bak"); err != nil {
			t.Fatalf("backup missing: %v", err)
		}
		if err := state.Remove(path, true); err != nil {
			t.Fatalf("removing a missing state should succeed: %v", err)
		}
	})
}

func TestJSONDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	st, err := state.OpenJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := st.Initialize(context.Background(), []string{"7"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"remainingTasks":["7"],"completedTasks":[],"skippedTasks":[],"imagesExtracted":0}`
	if string(data) != want {
		t.Fatalf("document = %s, want %s", data, want)
	}
}

func TestJSONRejectsInvalidPersistedState(t *testing.T) {
	cases := map[string]string{
		"overlap":         `{"remainingTasks":["1"],"completedTasks":["1"],"skippedTasks":[],"imagesExtracted":0}`,
		"duplicate":       `{"remainingTasks":["1","1"],"completedTasks":[],"skippedTasks":[],"imagesExtracted":0}`,
		"skipped orphan":  `{"remainingTasks":[],"completedTasks":[],"skippedTasks":["1"],"imagesExtracted":0}`,
		"negative images": `{"remainingTasks":[],"completedTasks":[],"skippedTasks":[],"imagesExtracted":-3}`,
		"garbage":         `{"remainingTasks":`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
				t.Fatal(err)
			}
			st, err := state.OpenJSON(path)
			if err != nil {
				t.Fatal(err)
			}
			defer st.Close()
			if _, err := st.Initialize(context.Background(), []string{"1"}); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestJSONReadsLegacyDocument(t *testing.T) {
	cases := map[string]string{
		"string ids":  `{"remainingTasks":["3","4"],"completedTasks":["1","2"],"skippedTasks":["2"],"imagesExtracted":40}`,
		"numeric ids": `{"remainingTasks":[3,4],"completedTasks":[1,2],"skippedTasks":[2],"imagesExtracted":40}`,
		"mixed ids":   `{"remainingTasks":[3,"4"],"completedTasks":["1",2],"skippedTasks":[2],"imagesExtracted":40}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
				t.Fatal(err)
			}
			st, err := state.OpenJSON(path)
			if err != nil {
				t.Fatal(err)
			}
			defer st.Close()
			res, err := st.Initialize(context.Background(), []string{"1", "2", "3", "4"})
			if err != nil {
				t.Fatal(err)
			}
			if !res.Resumed || res.Changed() {
				t.Fatalf("expected clean resume, got %+v", res)
			}
			snap := st.Snapshot()
			if snap.ImagesExtracted != 40 || snap.Extracted() != 1 || snap.Total() != 4 {
				t.Fatalf("unexpected snapshot %+v", snap)
			}
			if !reflect.DeepEqual(snap.RemainingTasks, []string{"3", "4"}) || !reflect.DeepEqual(snap.SkippedTasks, []string{"2"}) {
				t.Fatalf("unexpected ids %+v", snap)
			}
		})
	}
}

func TestJSONRejectsFractionalTaskID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	doc := `{"remainingTasks":[3.5],"completedTasks":[],"skippedTasks":[],"imagesExtracted":0}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := state.OpenJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := st.Initialize(context.Background(), []string{"3"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
