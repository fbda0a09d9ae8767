// Package l2calib owns Layer 2 (Calibration) of the alignment data model.
//
// Responsibilities: estimating the planar homography between planning
// space (the static wall photo) and camera space (live frame pixels),
// projecting points through it in either direction, grading the fit and
// publishing the active calibration as an atomically swapped snapshot.
// Key types: Homography, Correspondence, Calibration, Active.
//
// Dependency rule: L2 may depend on L1, but never on L3-L5.
// No SQL/database code is allowed in this package.
package l2calib
