package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"signframes/internal/services"
)

var nzslEntryPattern = regexp.MustCompile(`^[0-9]+\.json$`)

// NZSL reads an NZSL dictionary export.
type NZSL struct {
	dir string
}

// NewNZSL returns a reader rooted at dir.
func NewNZSL(dir string) *NZSL {
	return &NZSL{dir: dir}
}

// nzslRecord lists the document fields signframes reads.
type nzslRecord struct {
	NZSLID     json.Number                `json:"nzsl_id"`
	Gloss      string                     `json:"gloss"`
	Video      string                     `json:"video"`
	Image      string                     `json:"image"`
	Attributes map[string]json.RawMessage `json:"attributes"`
}

// Entries returns every numeric document id in ascending numeric order.
func (n *NZSL) Entries(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dataDir := filepath.Join(n.dir, "data")
	files, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "dataset", "list nzsl", dataDir, err)
	}
	ids := make([]int, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !nzslEntryPattern.MatchString(f.Name()) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(f.Name(), ".json"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out, nil
}

// Lookup loads data/<id>.json and resolves its media paths.
func (n *NZSL) Lookup(ctx context.Context, id string) (Definition, error) {
	if err := ctx.Err(); err != nil {
		return Definition{}, err
	}
	num, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || num < 0 {
		return Definition{}, services.Wrap(services.ErrValidation, "dataset", "lookup",
			fmt.Sprintf("nzsl id %q is not a number", id), nil)
	}
	path := filepath.Join(n.dir, "data", strconv.Itoa(num)+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Definition{}, services.Wrap(services.ErrNotFound, "dataset", "lookup", path, err)
	}
	if err != nil {
		return Definition{}, services.Wrap(services.ErrTransient, "dataset", "lookup", path, err)
	}

	var rec nzslRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Definition{}, services.Wrap(services.ErrValidation, "dataset", "decode", path, err)
	}
	signID := rec.NZSLID.String()
	if signID == "" {
		signID = strconv.Itoa(num)
	}

	def := Definition{
		ID:         strconv.Itoa(num),
		Gloss:      strings.TrimSpace(rec.Gloss),
		Attributes: stringListAttributes(rec.Attributes),
	}
	if rec.Video != "" {
		def.VideoPath = filepath.Join(n.dir, "video", signID, rec.Video)
	}
	if rec.Image != "" {
		def.ImagePath = filepath.Join(n.dir, "image", rec.Image)
	}
	def.Handshapes = def.Attributes["handshapes"]
	return def, nil
}

// stringListAttributes keeps attributes whose values are string arrays.
func stringListAttributes(raw map[string]json.RawMessage) map[string][]string {
	out := make(map[string][]string, len(raw))
	for key, value := range raw {
		var list []string
		if err := json.Unmarshal(value, &list); err != nil {
			continue
		}
		out[key] = list
	}
	return out
}
