// Package prometheus exposes engine counters through client_golang.
//
// [NewCollector] wraps an engine as a [prometheus.Collector]; register it on
// your own registry or serve it with [Handler]. Counters are named
// goidentity_*_total and verification latency is the histogram
// goidentity_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the default global registry.
//   - Mutate engine state.
package prometheus
