package metrics

import "time"

// ResultLabel enumerates result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// ResultFor maps a success flag to a label.
func ResultFor(success bool) ResultLabel {
	if success {
		return ResultSuccess
	}
	return ResultFailed
}

// Recorder defines observability hooks for release runs. Implementations must
// be safe for concurrent use; fan-out members record from their own goroutines.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(state string) // state: done|failed
	ObservePlatformBuildDuration(platform string, d time.Duration, success bool)
	SetBuildConcurrency(n int)
	IncAssetUploadRetry()
	IncAssetUploadResult(result ResultLabel)
	IncTargetPublishResult(target string, result ResultLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)               {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                       {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                         {}
func (NoopRecorder) IncRunOutcome(string)                                     {}
func (NoopRecorder) ObservePlatformBuildDuration(string, time.Duration, bool) {}
func (NoopRecorder) SetBuildConcurrency(int)                                  {}
func (NoopRecorder) IncAssetUploadRetry()                                     {}
func (NoopRecorder) IncAssetUploadResult(ResultLabel)                         {}
func (NoopRecorder) IncTargetPublishResult(string, ResultLabel)               {}
