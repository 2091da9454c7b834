// Package tracking contains the core domain types of the tracker.
//
// Tag and AnchorSite are roster entries owned by the roster repository.
// Anchor, Observation and Position are produced by the engine. Clone helpers
// keep snapshot readers from sharing memory with the engine goroutine.
package tracking
