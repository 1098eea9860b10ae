// Package extraction drives the resumable task loop: dequeue a dataset entry,
// decide whether it belongs in the training set, decode its video, estimate
// and augment poses, crop the configured keypoints into one directory per
// label, and record the outcome in the state store.
//
// Tasks run strictly one after another so only one video's decoded frames
// occupy disk at a time. Within a task, crops for distinct (label, keypoint)
// pairs run concurrently. Any error aborts the run; the in-flight task stays
// queued in the persisted state and is reprocessed on the next run.
package extraction
