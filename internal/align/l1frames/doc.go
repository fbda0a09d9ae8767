// Package l1frames owns Layer 1 (Frames) of the alignment data model.
//
// Responsibilities: the camera frame value type, frame sources that feed
// the alignment loop, and the single-slot latest-wins mailbox that sits
// between capture and processing.
// Key types: Frame, Source, Mailbox, DirSource.
//
// Dependency rule: L1 depends on no other align layer.
package l1frames
