// Package metrics records pipeline, enrichment, upload and publish activity.
// Components default to NoopRecorder; serve mode swaps in the Prometheus one.
package metrics

import "time"

// Outcome labels used by the counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Recorder is the set of observability hooks used across the publish flow.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObservePipelineDuration(d time.Duration)
	IncEnrichment(kind, outcome string)
	IncUpload(kind, outcome string)
	IncPublish(resource, outcome string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObservePipelineDuration(time.Duration)      {}
func (NoopRecorder) IncEnrichment(string, string)               {}
func (NoopRecorder) IncUpload(string, string)                   {}
func (NoopRecorder) IncPublish(string, string)                  {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
