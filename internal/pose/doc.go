// Package pose augments raw per-frame pose estimates with synthetic hand
// keypoints and per-keypoint reliability scores.
//
// Augment is a pure transformation over one video's frame sequence. The first
// pass extrapolates fakeLeftHand and fakeRightHand past each wrist along the
// elbow to wrist vector. The second pass scores every keypoint for temporal
// stability against its neighbouring frames, for distance from the bottom frame
// edge, and combines those with the estimator's confidence into a single
// quality value that gates crop extraction.
package pose
