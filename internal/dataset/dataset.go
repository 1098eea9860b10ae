package dataset

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"signframes/internal/config"
	"signframes/internal/services"
)

// Definition is one resolved task.
type Definition struct {
	ID        string
	VideoPath string
	ImagePath string
	Gloss     string
	// Labels are supplied directly by the dataset layout (folders).
	Labels []string
	// Handshapes lists handshape attribute names such as "1-fist-a".
	Handshapes []string
	// Attributes holds the string-list attributes of the source record.
	Attributes map[string][]string
}

// Dataset lists task identifiers and resolves them.
type Dataset interface {
	Entries(ctx context.Context) ([]string, error)
	Lookup(ctx context.Context, id string) (Definition, error)
}

// Open returns the dataset selected by the [dataset] section.
func Open(cfg *config.Config) (Dataset, error) {
	switch cfg.Dataset.Kind {
	case config.DatasetNZSL:
		return NewNZSL(cfg.Dataset.Dir), nil
	case config.DatasetFolders:
		return NewFolders(cfg.Dataset.Dir), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "dataset", "open",
			fmt.Sprintf("unknown dataset kind %q", cfg.Dataset.Kind), nil)
	}
}

// NormalizeLabel returns the NFC form of a label with surrounding space
// removed. Labels become directory names, so empty labels, path separators,
// and dot segments are rejected.
func NormalizeLabel(label string) (string, error) {
	normalized := strings.TrimSpace(norm.NFC.String(label))
	switch {
	case normalized == "":
		return "", services.Wrap(services.ErrValidation, "dataset", "label", "empty label", nil)
	case normalized == "." || normalized == ".." || strings.Contains(normalized, ".."):
		return "", services.Wrap(services.ErrValidation, "dataset", "label",
			fmt.Sprintf("label %q contains a dot segment", label), nil)
	case strings.ContainsAny(normalized, `/\`) || strings.ContainsRune(normalized, 0):
		return "", services.Wrap(services.ErrValidation, "dataset", "label",
			fmt.Sprintf("label %q contains a path separator", label), nil)
	}
	return normalized, nil
}

// NormalizeLabels normalizes every label and drops duplicates, keeping order.
func NormalizeLabels(labels []string) ([]string, error) {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		normalized, err := NormalizeLabel(label)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out, nil
}
