package extraction

import (
	"fmt"
	"strings"

	"signframes/internal/config"
	"signframes/internal/dataset"
	"signframes/internal/services"
)

// Selector decides whether a task is processed or recorded as skipped.
type Selector func(dataset.Definition) bool

// Labeler derives the output labels for an included task.
type Labeler func(dataset.Definition) []string

// SelectHandshapes includes entries that carry at least one handshape.
func SelectHandshapes(def dataset.Definition) bool {
	return len(def.Handshapes) > 0
}

// SelectAll includes every entry.
func SelectAll(dataset.Definition) bool {
	return true
}

// LabelHandshapes labels an entry by handshape family: "1-fist-a" becomes "1".
func LabelHandshapes(def dataset.Definition) []string {
	labels := make([]string, 0, len(def.Handshapes))
	for _, shape := range def.Handshapes {
		family, _, _ := strings.Cut(shape, "-")
		labels = append(labels, family)
	}
	return labels
}

// LabelFromDefinition uses the labels the dataset layout supplies.
func LabelFromDefinition(def dataset.Definition) []string {
	return append([]string(nil), def.Labels...)
}

// SelectorByName resolves the extraction.selector config value.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case config.SelectorHandshapes:
		return SelectHandshapes, nil
	case config.SelectorAll:
		return SelectAll, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "extraction", "selector",
			fmt.Sprintf("unknown selector %q", name), nil)
	}
}

// LabelerByName resolves the extraction.labeler config value.
func LabelerByName(name string) (Labeler, error) {
	switch name {
	case config.LabelerHandshapes:
		return LabelHandshapes, nil
	case config.LabelerDefinition:
		return LabelFromDefinition, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "extraction", "labeler",
			fmt.Sprintf("unknown labeler %q", name), nil)
	}
}
