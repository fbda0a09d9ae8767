// Package l4pose owns Layer 4 (Pose) of the alignment data model.
//
// Responsibilities: locating the tracked picture (or a marker standing in
// for it) in one camera frame and reporting its oriented box in camera
// pixels with a confidence score. Detection techniques are pluggable
// behind Detector; the Estimator adds hinted local search, full-frame
// fallback and the confidence floor.
// Key types: ObservedPose, Detector, Estimator, ContourDetector,
// TemplateDetector.
//
// All detectors are deterministic: the same frame and hint always give
// the same pose.
//
// Dependency rule: L4 may depend on L1-L2, but never on L3 or L5.
package l4pose
