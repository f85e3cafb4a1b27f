package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg, "")
	pr.ObserveStageDuration("building", 150*time.Millisecond)
	pr.IncStageResult("building", ResultSuccess)
	pr.ObserveRunDuration(2 * time.Second)
	pr.IncRunOutcome("done")
	pr.ObservePlatformBuildDuration("linux-amd64", time.Second, true)
	pr.SetBuildConcurrency(3)
	pr.IncAssetUploadRetry()
	pr.IncAssetUploadResult(ResultFailed)
	pr.IncTargetPublishResult("pypi", ResultSuccess)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
	if got := gaugeValue(t, reg, "releaser_last_run_successful"); got != 1 {
		t.Fatalf("expected last_run_successful 1, got %v", got)
	}
	if got := counterValue(t, reg, "releaser_target_publish_results_total", "pypi"); got != 1 {
		t.Fatalf("expected one pypi success, got %v", got)
	}

	pr.IncRunOutcome("failed")
	if got := gaugeValue(t, reg, "releaser_last_run_successful"); got != 0 {
		t.Fatalf("expected last_run_successful 0 after failure, got %v", got)
	}
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("x", time.Second)
	pr.IncRunOutcome("done")
	pr.IncTargetPublishResult("x", ResultFailed)
}

func TestHTTPHandlerServesNamespace(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg, "nightly")
	pr.IncRunOutcome("done")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), "nightly_run_outcomes_total") {
		t.Fatalf("expected namespaced metric in output:\n%s", body)
	}
}

func gaugeValue(t *testing.T, reg *prom.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func counterValue(t *testing.T, reg *prom.Registry, name, target string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "target" && lp.GetValue() == target {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{target=%q} not found", name, target)
	return 0
}
