// Package otel exposes linkauth engine metrics as OpenTelemetry observable
// instruments.
//
// Counters map to Int64ObservableCounter. The authorize latency histogram is
// published as one cumulative gauge per bucket plus a count gauge, since the
// engine keeps bucket counts only.
package otel
