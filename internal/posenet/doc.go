// Package posenet runs an external single-person pose estimator over video
// frames and turns its output into augmented poses.
//
// Two estimator backends are provided: CommandEstimator runs an executable per
// frame and reads PoseNet-shaped JSON from stdout, HTTPEstimator posts the
// frame to a pose service. Machine pads every frame to a square canvas before
// estimation, maps the reported coordinates back into frame space, and hands
// the sequence to pose.Augment.
package posenet
