// Package otel publishes dualAuth metrics as OpenTelemetry observable
// instruments on a caller-supplied Meter.
//
// Each counter family becomes one Int64ObservableCounter whose series are
// told apart by attributes. Token gate latency is published as cumulative
// bucket gauges keyed by an "le" attribute.
package otel
