/*
Package metrics exposes rexe's run counters as Prometheus collectors.

rexe is a one-shot CLI, not a long-lived service, so these metrics are not
scraped in the usual sense — they exist for an operator who points
--metrics-addr at a local port and pulls them with curl before the process
exits, or for a sidecar that scrapes immediately before teardown. The
collectors themselves follow the same package-level-var-plus-init()
registration idiom used throughout this codebase.

# Usage

	timer := metrics.NewTimer()
	// ... accept the offer ...
	timer.ObserveDuration(metrics.SchedulingLatency)
*/
package metrics
