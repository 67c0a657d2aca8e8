// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Channel connection state and reconnect counts
//   - Inbound frame rates and malformed frames
//   - Polling fallback runs and fetch failures
//   - Cache operations and skipped renders
package metrics
