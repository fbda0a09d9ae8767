// Package l5guidance owns Layer 5 (Guidance) of the alignment data model.
//
// Responsibilities: mapping each observed pose into planning space,
// comparing it with the planned target, smoothing the deviation, driving
// the SEARCHING/TRACKING/ALIGNED/LOST state machine and summarising the
// correction as directives for the guidance renderer.
// Key types: Engine, TrackingSession, DeviationVector, GuidanceResult.
//
// Dependency rule: L5 may depend on L1-L4. No SQL/database code is
// allowed in this package.
package l5guidance
