// Package telemetry wraps OpenTelemetry SDK initialization, providing
// centrally configured TracerProvider and MeterProvider instances.
// When telemetry is disabled, noop implementations are used and no
// external service is contacted.
package telemetry
