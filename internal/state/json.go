package state

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"signframes/internal/fileutil"
	"signframes/internal/services"
)

type jsonBackend struct {
	path string
}

// OpenJSON opens a JSON document store at path, taking its lock.
func OpenJSON(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "state", "open", path, err)
	}
	lock, err := acquireLock(path)
	if err != nil {
		return nil, err
	}
	return newStore(path, &jsonBackend{path: path}, lock), nil
}

func (b *jsonBackend) load(ctx context.Context) (State, bool, error) {
	if err := ctx.Err(); err != nil {
		return State{}, false, err
	}
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, services.Wrap(services.ErrTransient, "state", "read", b.path, err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, services.Wrap(services.ErrValidation, "state", "decode", b.path, err)
	}
	return st, true, nil
}

func (b *jsonBackend) save(ctx context.Context, st State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return services.Wrap(services.ErrValidation, "state", "encode", b.path, err)
	}
	if err := fileutil.WriteFileAtomic(b.path, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "state", "write", b.path, err)
	}
	return nil
}

func (b *jsonBackend) close() error {
	return nil
}
