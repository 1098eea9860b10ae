// Package imaging reads and writes the still images the extraction pipeline
// works with: decoded video frames, square-padded estimator inputs, and the
// cropped keypoint samples that make up the output dataset.
//
// PNG and JPEG are supported for output. BMP, TIFF, and WebP inputs are
// decoded through golang.org/x/image so frames produced by other tools can be
// cropped as well.
package imaging
