// Package pipeline runs the alignment loop: it pulls the newest frame
// from a source, steps the guidance engine and fans each result out to
// sinks.
//
// It sits above the L1-L5 layers and owns no domain state of its own.
package pipeline
