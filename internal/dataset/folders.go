package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"signframes/internal/services"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".m4v": {}, ".avi": {},
	".mov": {}, ".ogg": {}, ".heif": {}, ".webm": {},
}

// Folders reads a tree of <root>/<label>/<video> files. Task ids have the
// form "<label>/<file name>".
type Folders struct {
	root string
}

// NewFolders returns a reader rooted at root.
func NewFolders(root string) *Folders {
	return &Folders{root: root}
}

// Entries lists every video in every label directory, sorted by id.
func (f *Folders) Entries(ctx context.Context) ([]string, error) {
	labels, err := os.ReadDir(f.root)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "dataset", "list folders", f.root, err)
	}
	var ids []string
	for _, label := range labels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !label.IsDir() || strings.HasPrefix(label.Name(), ".") {
			continue
		}
		files, err := os.ReadDir(filepath.Join(f.root, label.Name()))
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "dataset", "list label", label.Name(), err)
		}
		for _, file := range files {
			if file.IsDir() || !IsVideoFile(file.Name()) {
				continue
			}
			ids = append(ids, label.Name()+"/"+file.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Lookup resolves "<label>/<file>" to a definition labelled with its folder.
func (f *Folders) Lookup(ctx context.Context, id string) (Definition, error) {
	if err := ctx.Err(); err != nil {
		return Definition{}, err
	}
	label, file, ok := strings.Cut(id, "/")
	if !ok || label == "" || file == "" || strings.ContainsAny(file, `/\`) {
		return Definition{}, services.Wrap(services.ErrValidation, "dataset", "lookup",
			fmt.Sprintf("task id %q is not <label>/<file>", id), nil)
	}
	normalized, err := NormalizeLabel(label)
	if err != nil {
		return Definition{}, err
	}
	path := filepath.Join(f.root, label, file)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Definition{}, services.Wrap(services.ErrNotFound, "dataset", "lookup", path, err)
		}
		return Definition{}, services.Wrap(services.ErrTransient, "dataset", "lookup", path, err)
	}
	return Definition{
		ID:        id,
		VideoPath: path,
		Gloss:     strings.TrimSuffix(file, filepath.Ext(file)),
		Labels:    []string{normalized},
	}, nil
}

// IsVideoFile reports whether name has a recognised video extension.
func IsVideoFile(name string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
