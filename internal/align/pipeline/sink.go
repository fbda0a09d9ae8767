package pipeline

import (
	"github.com/hashicorp/go-multierror"

	"github.com/banshee-data/wall.align/internal/align/l5guidance"
)

// Sink receives every guidance result produced by a Runner, in frame
// order. Implementations live outside the align layers (renderers,
// storage/sqlite).
type Sink interface {
	RecordGuidance(res l5guidance.GuidanceResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(res l5guidance.GuidanceResult) error

// RecordGuidance implements Sink.
func (f SinkFunc) RecordGuidance(res l5guidance.GuidanceResult) error { return f(res) }

// MultiSink fans a result out to several sinks. Every sink is called even
// when an earlier one fails; the failures are joined.
type MultiSink []Sink

// RecordGuidance implements Sink.
func (m MultiSink) RecordGuidance(res l5guidance.GuidanceResult) error {
	var result *multierror.Error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.RecordGuidance(res); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
