// Package otel bridges engine counters to an OpenTelemetry metric.Meter
// through observable instruments read at collection time.
package otel
