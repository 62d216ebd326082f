// Package observability provides an OpenTelemetry-based metrics extension
// for sequent. The MetricsExtension implements lifecycle hooks to record
// dispatcher-wide counters for dispatched, handled, failed, and ignored
// events, plus a gauge of live sequences.
//
// For per-event tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
