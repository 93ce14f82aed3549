// Package health periodically observes protected executors and raises
// alerts.
//
// A Monitor samples the pool and circuit state of every registered
// executor on a fixed interval, computes pool utilization, and publishes
// health_alert events when a utilization threshold is crossed or a circuit
// changes state. Alerts are edge-triggered: a steady condition is reported
// once, not on every tick.
//
// Snapshot returns a point-in-time report of all dependencies, and the
// HTTP handlers expose it for ops tooling.
package health
