package state

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/gofrs/flock"

	"signframes/internal/fileutil"
	"signframes/internal/services"
)

// backend reads and writes whole snapshots.
type backend interface {
	load(ctx context.Context) (State, bool, error)
	save(ctx context.Context, st State) error
	close() error
}

// store implements Store on top of a snapshot backend.
type store struct {
	mu       sync.Mutex
	path     string
	backend  backend
	lock     *flock.Flock
	state    State
	inFlight string
	ready    bool
}

func newStore(path string, b backend, lock *flock.Flock) *store {
	return &store{path: path, backend: b, lock: lock}
}

// acquireLock takes the exclusive lock guarding path.
func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "state", "lock", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "state", "lock", path, ErrLocked)
	}
	return lock, nil
}

func (s *store) Path() string {
	return s.path
}

func (s *store) Initialize(ctx context.Context, tasks []string) (InitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, exists, err := s.backend.load(ctx)
	if err != nil {
		return InitResult{}, err
	}
	if exists {
		if err := loaded.Validate(); err != nil {
			return InitResult{}, fmt.Errorf("persisted state %s: %w", s.path, err)
		}
		// The durable view already lists any unfinished task as remaining.
		s.state = loaded.Clone()
		s.inFlight = ""
		s.ready = true
		result := diffTasks(s.state, tasks)
		result.Resumed = true
		return result, nil
	}

	fresh := State{RemainingTasks: dedupe(tasks)}.Clone()
	if err := s.backend.save(ctx, fresh); err != nil {
		return InitResult{}, err
	}
	s.state = fresh
	s.inFlight = ""
	s.ready = true
	return InitResult{}, nil
}

func (s *store) Dequeue() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return "", false
	}
	if s.inFlight != "" {
		return s.inFlight, true
	}
	if len(s.state.RemainingTasks) == 0 {
		return "", false
	}
	id := s.state.RemainingTasks[0]
	s.state.RemainingTasks = s.state.RemainingTasks[1:]
	s.inFlight = id
	return id, true
}

func (s *store) MarkSkipped(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finishLocked(id, "mark skipped"); err != nil {
		return err
	}
	s.state.SkippedTasks = append(s.state.SkippedTasks, id)
	s.state.CompletedTasks = append(s.state.CompletedTasks, id)
	return nil
}

func (s *store) MarkCompleted(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finishLocked(id, "mark completed"); err != nil {
		return err
	}
	s.state.CompletedTasks = append(s.state.CompletedTasks, id)
	return nil
}

func (s *store) finishLocked(id, operation string) error {
	if s.inFlight == "" || s.inFlight != id {
		return services.Wrap(services.ErrValidation, "state", operation,
			fmt.Sprintf("task %q is not in flight", id), nil)
	}
	s.inFlight = ""
	return nil
}

func (s *store) AddImages(n int) error {
	if n < 0 {
		return services.Wrap(services.ErrValidation, "state", "add images",
			fmt.Sprintf("negative image count %d", n), nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ImagesExtracted += n
	return nil
}

func (s *store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return services.Wrap(services.ErrValidation, "state", "persist", "store is not initialized", nil)
	}
	return s.backend.save(ctx, s.durableLocked())
}

func (s *store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durableLocked()
}

// durableLocked returns the state as it must appear on disk: an in-flight
// task is still remaining.
func (s *store) durableLocked() State {
	snap := s.state.Clone()
	if s.inFlight != "" {
		snap.RemainingTasks = append([]string{s.inFlight}, snap.RemainingTasks...)
	}
	return snap
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.backend.close()
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
		s.lock = nil
	}
	return err
}

// diffTasks compares the supplied task set with the persisted one.
func diffTasks(st State, tasks []string) InitResult {
	known := make(map[string]struct{}, st.Total())
	for _, id := range st.RemainingTasks {
		known[id] = struct{}{}
	}
	for _, id := range st.CompletedTasks {
		known[id] = struct{}{}
	}
	supplied := make(map[string]struct{}, len(tasks))
	var result InitResult
	for _, id := range dedupe(tasks) {
		supplied[id] = struct{}{}
		if _, ok := known[id]; !ok {
			result.Added = append(result.Added, id)
		}
	}
	for id := range known {
		if _, ok := supplied[id]; !ok {
			result.Missing = append(result.Missing, id)
		}
	}
	sort.Strings(result.Missing)
	return result
}

// Remove deletes a state file and its lock. The lock is taken first so a
// running extraction is never pulled out from under itself. With keepBackup a
// copy is left next to the original with a .bak suffix.
func Remove(path string, keepBackup bool) error {
	lock, err := acquireLock(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(path + ".lock")
	}()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if keepBackup {
		if err := fileutil.CopyFile(path, path+".bak"); err != nil {
			return services.Wrap(services.ErrTransient, "state", "backup", path, err)
		}
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return services.Wrap(services.ErrTransient, "state", "remove", path+suffix, err)
		}
	}
	return nil
}
