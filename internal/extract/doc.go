// Package extract turns augmented pose sequences into cropped image samples.
//
// For each frame whose target keypoint passes a Selector, a fixed-size square
// window centred on the keypoint is cut from the frame and written to the
// output directory. Windows are clamped to the frame so they never leave it;
// a crop size larger than the frame is rejected as a configuration error.
// RunAll fans several (label, keypoint) requests out over the same pose
// sequence and waits for all of them.
package extract
