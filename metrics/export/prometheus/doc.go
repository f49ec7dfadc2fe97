// Package prometheus renders linkauth engine metrics in the Prometheus text
// exposition format.
//
// Counters are named linkauth_*_total; the only histogram is
// linkauth_authorize_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into a global registry. Callers mount [Exporter.Handler].
//   - Mutate engine state.
package prometheus
