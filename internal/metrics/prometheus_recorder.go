package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name unless configured otherwise.
const DefaultNamespace = "releaser"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration     *prom.HistogramVec
	stageResults      *prom.CounterVec
	runDuration       prom.Histogram
	runOutcome        *prom.CounterVec
	platformDuration  *prom.HistogramVec
	buildConcurrency  prom.Gauge
	assetRetries      prom.Counter
	assetResults      *prom.CounterVec
	targetResults     *prom.CounterVec
	lastRunTimestamp  prom.Gauge
	lastRunSuccessful prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry, namespace string) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.ExponentialBuckets(0.1, 2, 14),
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total release run duration",
			Buckets:   prom.ExponentialBuckets(1, 2, 14),
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Release runs by final state",
		}, []string{"state"}),
		platformDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "platform_build_duration_seconds",
			Help:      "Duration of individual platform builds",
			Buckets:   prom.ExponentialBuckets(0.5, 2, 12),
		}, []string{"platform", "result"}),
		buildConcurrency: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "build_concurrency",
			Help:      "Platform build concurrency of the last run",
		}),
		assetRetries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "asset_upload_retries_total",
			Help:      "Asset upload retries after transient failures",
		}),
		assetResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "asset_upload_results_total",
			Help:      "Asset upload results",
		}, []string{"result"}),
		targetResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "target_publish_results_total",
			Help:      "Package registry publish results by target",
		}, []string{"target", "result"}),
		lastRunTimestamp: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last release run finished",
		}),
		lastRunSuccessful: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_successful",
			Help:      "1 if the last release run reached done, 0 otherwise",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.runDuration, pr.runOutcome,
		pr.platformDuration, pr.buildConcurrency, pr.assetRetries, pr.assetResults,
		pr.targetResults, pr.lastRunTimestamp, pr.lastRunSuccessful)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(state string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(state).Inc()
	p.lastRunTimestamp.SetToCurrentTime()
	if state == "done" {
		p.lastRunSuccessful.Set(1)
	} else {
		p.lastRunSuccessful.Set(0)
	}
}

func (p *PrometheusRecorder) ObservePlatformBuildDuration(platform string, d time.Duration, success bool) {
	if p == nil || p.platformDuration == nil {
		return
	}
	p.platformDuration.WithLabelValues(platform, string(ResultFor(success))).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetBuildConcurrency(n int) {
	if p == nil || p.buildConcurrency == nil {
		return
	}
	p.buildConcurrency.Set(float64(n))
}

func (p *PrometheusRecorder) IncAssetUploadRetry() {
	if p == nil || p.assetRetries == nil {
		return
	}
	p.assetRetries.Inc()
}

func (p *PrometheusRecorder) IncAssetUploadResult(result ResultLabel) {
	if p == nil || p.assetResults == nil {
		return
	}
	p.assetResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncTargetPublishResult(target string, result ResultLabel) {
	if p == nil || p.targetResults == nil {
		return
	}
	p.targetResults.WithLabelValues(target, string(result)).Inc()
}
