package pose

import (
	"fmt"
	"math"
	"strconv"
)

// Position is a point in source-frame pixel coordinates.
type Position struct {
	X float64
	Y float64
}

// FrameFormat holds the pixel dimensions of the frame a pose was estimated on.
type FrameFormat struct {
	Width  int
	Height int
}

// RawKeypoint is one keypoint as reported by the pose estimator.
type RawKeypoint struct {
	Part     string
	Position Position
	Score    float64
}

// RawPose is the estimator output for a single frame.
type RawPose struct {
	Score       float64
	Keypoints   []RawKeypoint
	FrameFormat FrameFormat
	FramePath   string
}

// Keypoint is an augmented keypoint. Stability, Uncropped, and Quality are
// filled in by Augment and always lie in [0, 1].
type Keypoint struct {
	Part      string
	Position  Position
	Score     float64
	Stability float64
	Uncropped float64
	Quality   float64
}

// Pose is one augmented frame. Keypoints are addressable by index through the
// Keypoints slice and by name through Keypoint; both return the same element.
type Pose struct {
	Score       float64
	FrameID     int
	FrameFormat FrameFormat
	FramePath   string
	Keypoints   []Keypoint

	index map[string]int
}

// Keypoint returns the keypoint with the given part name.
func (p *Pose) Keypoint(name string) (*Keypoint, bool) {
	if p == nil {
		return nil, false
	}
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return &p.Keypoints[i], true
}

// At returns the keypoint at index i.
func (p *Pose) At(i int) (*Keypoint, bool) {
	if p == nil || i < 0 || i >= len(p.Keypoints) {
		return nil, false
	}
	return &p.Keypoints[i], true
}

// Lookup resolves a KeypointID against the pose.
func (p *Pose) Lookup(id KeypointID) (*Keypoint, bool) {
	if id.byIndex {
		return p.At(id.index)
	}
	return p.Keypoint(id.name)
}

// Summary renders a compact score line for debug logging.
func (p *Pose) Summary(name string) string {
	kp, ok := p.Keypoint(name)
	if !ok {
		return name + " missing"
	}
	return fmt.Sprintf("score=%s stability=%s uncropped=%s quality=%s",
		round2(kp.Score), round2(kp.Stability), round2(kp.Uncropped), round2(kp.Quality))
}

func (p *Pose) reindex() {
	p.index = make(map[string]int, len(p.Keypoints))
	for i, kp := range p.Keypoints {
		if _, exists := p.index[kp.Part]; !exists {
			p.index[kp.Part] = i
		}
	}
}

// KeypointID addresses a keypoint by part name or by index.
type KeypointID struct {
	name    string
	index   int
	byIndex bool
}

// ByName addresses a keypoint by part name.
func ByName(name string) KeypointID {
	return KeypointID{name: name}
}

// ByIndex addresses a keypoint by position within the pose.
func ByIndex(i int) KeypointID {
	return KeypointID{index: i, byIndex: true}
}

// ParseKeypointID treats purely numeric values as indexes and everything else
// as part names.
func ParseKeypointID(value string) KeypointID {
	if i, err := strconv.Atoi(value); err == nil {
		return ByIndex(i)
	}
	return ByName(value)
}

// Index returns the addressed index when the ID was built by index.
func (id KeypointID) Index() (int, bool) {
	return id.index, id.byIndex
}

// Name returns the addressed part name, or "" for index IDs.
func (id KeypointID) Name() string {
	if id.byIndex {
		return ""
	}
	return id.name
}

func (id KeypointID) String() string {
	if id.byIndex {
		return "#" + strconv.Itoa(id.index)
	}
	return id.name
}

func round2(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
}
