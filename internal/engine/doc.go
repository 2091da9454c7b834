// Package engine implements the streaming multilateration engine.
//
// An Engine owns the roster index, the Aggregator and the Ledger. All of them
// are mutated only by the goroutine running Engine.Run, which drains a single
// command queue: observations, roster reloads, expiry sweeps and flush
// barriers are processed one at a time and each runs to completion before the
// next starts. Results are published to a snapshot.Store for readers.
package engine
