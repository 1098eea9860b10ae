package pose

import (
	"errors"
	"fmt"
	"math"

	"signframes/internal/services"
)

const (
	// HandExtension is how far past the wrist, as a multiple of the elbow to
	// wrist vector, the synthetic hand keypoints are placed.
	HandExtension = 1.3
	// MinAllowance is the smallest neighbour spread, in pixels, used when
	// scoring stability.
	MinAllowance = 10.0
	// bottomMarginDivisor sets the uncropped ramp to a quarter of the frame height.
	bottomMarginDivisor = 4.0
)

// ErrMissingKeypoint reports a raw pose that lacks a canonical keypoint.
var ErrMissingKeypoint = errors.New("missing canonical keypoint")

type handSpec struct {
	part  string
	elbow string
	wrist string
}

var hands = []handSpec{
	{part: FakeLeftHand, elbow: LeftElbow, wrist: LeftWrist},
	{part: FakeRightHand, elbow: RightElbow, wrist: RightWrist},
}

// Augment converts a frame-ordered sequence of raw estimates into augmented
// poses. The input is not modified. Any frame lacking a canonical keypoint, or
// without a usable frame format, fails the whole sequence.
func Augment(raw []RawPose) ([]Pose, error) {
	poses := make([]Pose, len(raw))
	for frameID := range raw {
		p, err := synthesize(frameID, raw[frameID])
		if err != nil {
			return nil, err
		}
		poses[frameID] = p
	}

	for frameID := range poses {
		var prev, next *Pose
		if frameID > 0 {
			prev = &poses[frameID-1]
		}
		if frameID+1 < len(poses) {
			next = &poses[frameID+1]
		}
		scoreFrame(&poses[frameID], prev, next)
	}
	return poses, nil
}

func synthesize(frameID int, raw RawPose) (Pose, error) {
	if raw.FrameFormat.Width <= 0 || raw.FrameFormat.Height <= 0 {
		return Pose{}, services.Wrap(services.ErrValidation, "pose", "augment",
			fmt.Sprintf("frame %d has invalid format %dx%d", frameID, raw.FrameFormat.Width, raw.FrameFormat.Height), nil)
	}

	byPart := make(map[string]RawKeypoint, len(raw.Keypoints))
	var extras []RawKeypoint
	for _, kp := range raw.Keypoints {
		if _, dup := byPart[kp.Part]; dup {
			return Pose{}, services.Wrap(services.ErrValidation, "pose", "augment",
				fmt.Sprintf("frame %d reports keypoint %q twice", frameID, kp.Part), nil)
		}
		if isSynthetic(kp.Part) {
			return Pose{}, services.Wrap(services.ErrValidation, "pose", "augment",
				fmt.Sprintf("frame %d reports reserved keypoint %q", frameID, kp.Part), nil)
		}
		byPart[kp.Part] = kp
		if _, known := partIndex[kp.Part]; !known {
			extras = append(extras, kp)
		}
	}

	keypoints := make([]Keypoint, 0, len(estimatedParts)+len(syntheticParts)+len(extras))
	for _, part := range estimatedParts {
		kp, ok := byPart[part]
		if !ok {
			return Pose{}, services.Wrap(services.ErrValidation, "pose", "augment",
				fmt.Sprintf("frame %d lacks %s", frameID, part), ErrMissingKeypoint)
		}
		keypoints = append(keypoints, Keypoint{Part: part, Position: kp.Position, Score: kp.Score})
	}
	for _, hand := range hands {
		elbow := byPart[hand.elbow]
		wrist := byPart[hand.wrist]
		keypoints = append(keypoints, Keypoint{
			Part:     hand.part,
			Position: extrapolate(elbow.Position, wrist.Position, HandExtension),
			Score:    wrist.Score * elbow.Score,
		})
	}
	for _, kp := range extras {
		keypoints = append(keypoints, Keypoint{Part: kp.Part, Position: kp.Position, Score: kp.Score})
	}

	p := Pose{
		Score:       raw.Score,
		FrameID:     frameID,
		FrameFormat: raw.FrameFormat,
		FramePath:   raw.FramePath,
		Keypoints:   keypoints,
	}
	p.reindex()
	return p, nil
}

func scoreFrame(p, prev, next *Pose) {
	height := float64(p.FrameFormat.Height)
	for i := range p.Keypoints {
		kp := &p.Keypoints[i]
		kp.Stability = stability(kp, prev, next)
		kp.Uncropped = clamp01((height - kp.Position.Y) / (height / bottomMarginDivisor))
		kp.Quality = math.Min(kp.Stability, math.Min(kp.Uncropped, kp.Score))
	}
}

// stability compares a keypoint with the midpoint of its neighbours. Boundary
// frames have no midpoint and score zero.
func stability(kp *Keypoint, prev, next *Pose) float64 {
	if prev == nil || next == nil {
		return 0
	}
	before, ok := prev.Keypoint(kp.Part)
	if !ok {
		return 0
	}
	after, ok := next.Keypoint(kp.Part)
	if !ok {
		return 0
	}
	prediction := extrapolate(before.Position, after.Position, 0.5)
	offset := distance(prediction, kp.Position)
	allowance := math.Max(distance(before.Position, after.Position), MinAllowance)
	return clamp01(1 - offset/allowance)
}

func extrapolate(from, to Position, factor float64) Position {
	return Position{
		X: from.X + (to.X-from.X)*factor,
		Y: from.Y + (to.Y-from.Y)*factor,
	}
}

func distance(a, b Position) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func isSynthetic(part string) bool {
	for _, name := range syntheticParts {
		if name == part {
			return true
		}
	}
	return false
}
