// Package telemetry provides EventSink implementations for the guard
// package.
//
// The guard core only emits named events; this package turns them into
// something an operator can consume:
//
//   - LogSink writes one JSON object per event to an io.Writer, ready for
//     a log shipper to pick up.
//
//   - MeterSink bridges events onto OpenTelemetry instruments: an event
//     counter, a pool utilization gauge and a retry-delay histogram.
//
//   - Multi fans one event stream out to several sinks.
//
// Transporting the resulting stream (OTLP, files, a hosted log store) is
// the surrounding application's concern.
package telemetry
