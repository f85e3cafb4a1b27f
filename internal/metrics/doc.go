// Package metrics provides observability hooks for release runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection needs no nil checks at call sites:
//
//	builder := build.NewBuilder(cfg, toolchain, build.WithRecorder(recorder))
//
// PrometheusRecorder forwards to client_golang collectors registered on a
// caller-supplied registry; HTTPHandler exposes that registry for scraping.
// The scheduler daemon is the only long-running process and therefore the
// only one that serves the handler.
package metrics
