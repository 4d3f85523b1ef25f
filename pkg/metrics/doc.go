// Package metrics exposes Prometheus metrics for the broker command
// pipeline and the record store.
package metrics
