package pose

// Canonical keypoint names in index order. The first seventeen come from the
// pose estimator; the last two are synthesized by Augment.
const (
	Nose          = "nose"
	LeftEye       = "leftEye"
	RightEye      = "rightEye"
	LeftEar       = "leftEar"
	RightEar      = "rightEar"
	LeftShoulder  = "leftShoulder"
	RightShoulder = "rightShoulder"
	LeftElbow     = "leftElbow"
	RightElbow    = "rightElbow"
	LeftWrist     = "leftWrist"
	RightWrist    = "rightWrist"
	LeftHip       = "leftHip"
	RightHip      = "rightHip"
	LeftKnee      = "leftKnee"
	RightKnee     = "rightKnee"
	LeftAnkle     = "leftAnkle"
	RightAnkle    = "rightAnkle"
	FakeLeftHand  = "fakeLeftHand"
	FakeRightHand = "fakeRightHand"
)

var estimatedParts = []string{
	Nose, LeftEye, RightEye, LeftEar, RightEar,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow, LeftWrist,
	RightWrist, LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle,
	RightAnkle,
}

var syntheticParts = []string{FakeLeftHand, FakeRightHand}

var partIndex = func() map[string]int {
	index := make(map[string]int, len(estimatedParts)+len(syntheticParts))
	for i, name := range Parts() {
		index[name] = i
	}
	return index
}()

// Parts returns every canonical keypoint name in index order, synthetic
// keypoints included.
func Parts() []string {
	out := make([]string, 0, len(estimatedParts)+len(syntheticParts))
	out = append(out, estimatedParts...)
	return append(out, syntheticParts...)
}

// EstimatedParts returns the keypoint names a raw pose estimate must carry.
func EstimatedParts() []string {
	cp := make([]string, len(estimatedParts))
	copy(cp, estimatedParts)
	return cp
}

// PartIndex resolves a canonical keypoint name to its index.
func PartIndex(name string) (int, bool) {
	i, ok := partIndex[name]
	return i, ok
}

// PartName returns the canonical name at index i.
func PartName(i int) (string, bool) {
	if i < 0 || i >= len(estimatedParts)+len(syntheticParts) {
		return "", false
	}
	if i < len(estimatedParts) {
		return estimatedParts[i], true
	}
	return syntheticParts[i-len(estimatedParts)], true
}
