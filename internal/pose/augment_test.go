package pose_test

import (
	"errors"
	"math"
	"testing"

	"signframes/internal/pose"
	"signframes/internal/services"
)

const epsilon = 1e-9

func rawFrame(score float64, overrides map[string]pose.Position) pose.RawPose {
	raw := pose.RawPose{
		Score:       score,
		FrameFormat: pose.FrameFormat{Width: 640, Height: 480},
	}
	for _, part := range pose.EstimatedParts() {
		pos := pose.Position{X: 50, Y: 50}
		if p, ok := overrides[part]; ok {
			pos = p
		}
		raw.Keypoints = append(raw.Keypoints, pose.RawKeypoint{Part: part, Position: pos, Score: 0.9})
	}
	return raw
}

func stationaryFrames(n int) []pose.RawPose {
	frames := make([]pose.RawPose, n)
	for i := range frames {
		frames[i] = rawFrame(0.8, map[string]pose.Position{
			pose.LeftElbow:  {X: 100, Y: 50},
			pose.LeftWrist:  {X: 100, Y: 100},
			pose.RightElbow: {X: 300, Y: 200},
			pose.RightWrist: {X: 280, Y: 220},
		})
	}
	return frames
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestAugmentStationarySequence(t *testing.T) {
	poses, err := pose.Augment(stationaryFrames(5))
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if len(poses) != 5 {
		t.Fatalf("expected 5 poses, got %d", len(poses))
	}
	for i, p := range poses {
		if p.FrameID != i {
			t.Fatalf("frame %d has id %d", i, p.FrameID)
		}
		if len(p.Keypoints) != len(pose.Parts()) {
			t.Fatalf("frame %d has %d keypoints", i, len(p.Keypoints))
		}

		left, ok := p.Keypoint(pose.FakeLeftHand)
		if !ok {
			t.Fatalf("frame %d missing fake left hand", i)
		}
		if !approx(left.Position.X, 100) || !approx(left.Position.Y, 115) {
			t.Fatalf("fake left hand at %+v, want (100,115)", left.Position)
		}
		if !approx(left.Score, 0.81) {
			t.Fatalf("fake left hand score = %v, want 0.81", left.Score)
		}

		right, _ := p.Keypoint(pose.FakeRightHand)
		if !approx(right.Position.X, 274) || !approx(right.Position.Y, 226) {
			t.Fatalf("fake right hand at %+v, want (274,226)", right.Position)
		}

		wantStability := 1.0
		if i == 0 || i == 4 {
			wantStability = 0
		}
		for _, kp := range p.Keypoints {
			if kp.Stability != wantStability {
				t.Fatalf("frame %d %s stability = %v, want %v", i, kp.Part, kp.Stability, wantStability)
			}
			if kp.Uncropped != 1 {
				t.Fatalf("frame %d %s uncropped = %v, want 1", i, kp.Part, kp.Uncropped)
			}
		}
		if want := math.Min(wantStability, 0.81); !approx(left.Quality, want) {
			t.Fatalf("frame %d fake left hand quality = %v, want %v", i, left.Quality, want)
		}
	}
}

func TestAugmentScoresStayInUnitRange(t *testing.T) {
	frames := stationaryFrames(4)
	frames[1] = rawFrame(0.5, map[string]pose.Position{pose.Nose: {X: 600, Y: 470}})
	frames[2] = rawFrame(0.5, map[string]pose.Position{pose.Nose: {X: -20, Y: 900}})
	poses, err := pose.Augment(frames)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	for _, p := range poses {
		for _, kp := range p.Keypoints {
			for name, v := range map[string]float64{"stability": kp.Stability, "uncropped": kp.Uncropped, "quality": kp.Quality} {
				if v < 0 || v > 1 {
					t.Fatalf("frame %d %s %s = %v out of range", p.FrameID, kp.Part, name, v)
				}
			}
			if kp.Quality > kp.Stability || kp.Quality > kp.Uncropped || kp.Quality > kp.Score {
				t.Fatalf("frame %d %s quality %v exceeds a component", p.FrameID, kp.Part, kp.Quality)
			}
		}
	}
	nose, _ := poses[2].Keypoint(pose.Nose)
	if nose.Uncropped != 0 {
		t.Fatalf("keypoint below frame should have uncropped 0, got %v", nose.Uncropped)
	}
}

func TestAugmentStabilityUsesMinimumAllowance(t *testing.T) {
	frames := stationaryFrames(3)
	frames[1] = rawFrame(0.8, map[string]pose.Position{pose.Nose: {X: 53, Y: 54}})
	poses, err := pose.Augment(frames)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	nose, _ := poses[1].Keypoint(pose.Nose)
	if !approx(nose.Stability, 0.5) {
		t.Fatalf("stability = %v, want 0.5", nose.Stability)
	}
}

func TestAugmentUncroppedRamp(t *testing.T) {
	frames := stationaryFrames(1)
	frames[0] = rawFrame(0.8, map[string]pose.Position{pose.Nose: {X: 10, Y: 420}})
	poses, err := pose.Augment(frames)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	nose, _ := poses[0].Keypoint(pose.Nose)
	if !approx(nose.Uncropped, 0.5) {
		t.Fatalf("uncropped = %v, want 0.5", nose.Uncropped)
	}
}

func TestAugmentMissingKeypoint(t *testing.T) {
	frames := stationaryFrames(3)
	frames[1].Keypoints = frames[1].Keypoints[:len(frames[1].Keypoints)-1]
	_, err := pose.Augment(frames)
	if !errors.Is(err, pose.ErrMissingKeypoint) {
		t.Fatalf("expected ErrMissingKeypoint, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestAugmentRejectsEmptyFrameFormat(t *testing.T) {
	frames := stationaryFrames(1)
	frames[0].FrameFormat = pose.FrameFormat{}
	if _, err := pose.Augment(frames); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAugmentEmptyInput(t *testing.T) {
	poses, err := pose.Augment(nil)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if len(poses) != 0 {
		t.Fatalf("expected no poses, got %d", len(poses))
	}
}

func TestAugmentLeavesInputUntouched(t *testing.T) {
	frames := stationaryFrames(3)
	// Reverse the keypoint order to make sure canonical ordering is not done in place.
	kps := frames[1].Keypoints
	for i, j := 0, len(kps)-1; i < j; i, j = i+1, j-1 {
		kps[i], kps[j] = kps[j], kps[i]
	}
	before := len(kps)
	first := kps[0]

	poses, err := pose.Augment(frames)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if len(frames[1].Keypoints) != before || frames[1].Keypoints[0] != first {
		t.Fatal("input keypoints were modified")
	}
	if poses[1].Keypoints[0].Part != pose.Nose {
		t.Fatalf("expected canonical order, first keypoint is %s", poses[1].Keypoints[0].Part)
	}
}

func TestAugmentKeepsUnknownKeypointsAfterCanonical(t *testing.T) {
	frames := stationaryFrames(1)
	frames[0].Keypoints = append(frames[0].Keypoints, pose.RawKeypoint{Part: "leftThumb", Position: pose.Position{X: 1, Y: 2}, Score: 0.4})
	poses, err := pose.Augment(frames)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	last := poses[0].Keypoints[len(poses[0].Keypoints)-1]
	if last.Part != "leftThumb" {
		t.Fatalf("expected extra keypoint last, got %s", last.Part)
	}
	if kp, ok := poses[0].Keypoint("leftThumb"); !ok || kp.Score != 0.4 {
		t.Fatalf("extra keypoint lookup failed: %+v %v", kp, ok)
	}
}

func TestAugmentRejectsReservedAndDuplicateParts(t *testing.T) {
	frames := stationaryFrames(1)
	frames[0].Keypoints = append(frames[0].Keypoints, pose.RawKeypoint{Part: pose.FakeLeftHand})
	if _, err := pose.Augment(frames); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected reserved part rejection, got %v", err)
	}

	frames = stationaryFrames(1)
	frames[0].Keypoints = append(frames[0].Keypoints, frames[0].Keypoints[0])
	if _, err := pose.Augment(frames); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected duplicate part rejection, got %v", err)
	}
}
