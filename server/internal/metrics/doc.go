// Package metrics exposes StewardLens server metrics on a private
// Prometheus registry: per-congregation score gauges, assessment and
// recommendation counters, and REST API request counts and latencies.
package metrics
