// Package metrics records build and assembly metrics.
//
// Components receive a Recorder through dependency injection and default to NoopRecorder,
// so metrics never need nil checks at call sites:
//
//	svc := build.NewService().WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// The CLI has no long-running listener, so the Prometheus recorder is exported with
// WriteTextfile for a node_exporter textfile collector to pick up.
package metrics
