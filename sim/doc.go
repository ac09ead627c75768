// Package sim provides the occupancy simulation engine for kerbside parking sensors.
//
// # Reading Guide
//
// Start with these three files to understand the simulation:
//   - sensor.go: SensorRecord wire shape and the Unoccupied ↔ Present transitions
//   - registry.go: the mutex-guarded sensor fleet every component shares
//   - arrival.go: the arrival loop and the per-car vacancy timers
//
// # Architecture
//
// Three activities run concurrently against one Registry:
//   - the ArrivalScheduler loop (random wait, occupy, emit, schedule vacancy)
//   - one vacancy timer per parked car (vacate, emit)
//   - the SnapshotPublisher tick (serialize the fleet, hand it to the sinks)
//
// Engine wires them together. Sinks are reached only through small
// interfaces; implementations live in sub-packages:
//   - sim/sink/: local file store, blob uploader and stream publishers
//   - sim/trace/: transition trace recording
//
// # Key Interfaces
//
//   - Emitter: receives every transition (EventEmitter writes the console line and publishes)
//   - StreamPublisher: sends one serialized record to a message stream
//   - SnapshotStore: writes and removes local snapshot artifacts
//   - BlobUploader: copies a local artifact to remote storage
package sim
