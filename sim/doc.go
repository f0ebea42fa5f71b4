// Package sim provides the discrete-event engine of the TSCH simulator.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - event.go: the slot clock (ASN), priorities and replaceable callback tags
//   - engine.go: scheduling, cancellation, pause and the Run loop
//   - schedule.go / collision.go: per-mote cell schedules and collision analysis
//
// # Architecture
//
// The sim package defines the engine and the schedule model; everything that
// happens inside a run lives in sub-packages:
//   - sim/topology/: mote placement, radio propagation and routing towards the root
//   - sim/mote/: the reference mote behaviour (cells, transmissions, relocation)
//   - sim/stats/: per-cycle statistics and the text report
//   - sim/telemetry/: per-run Prometheus counters fed by the engine and collector
//   - sim/store/: SQLite persistence of campaign statistics
//   - sim/trace/: fired-event recording
//   - sim/campaign/: multi-run campaigns, sequential or concurrent
//
// Each run owns one Engine. Engines share nothing, so runs are safe to execute
// on separate goroutines; a single Engine is not safe for concurrent use.
//
// # Key Interfaces
//
//   - Node: what the collision analyzer needs from a mote (id, cells, RSSI)
//   - Observer: notified of every fired event
package sim
