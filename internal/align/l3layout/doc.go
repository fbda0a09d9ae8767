// Package l3layout owns Layer 3 (Layout) of the alignment data model.
//
// Responsibilities: holding the planned target pose of every picture in
// planning space and publishing item sets as immutable snapshots.
// Key types: PlannedItem, Layout, Model.
//
// Dependency rule: L3 may depend on L2, but never on L4-L5.
package l3layout
