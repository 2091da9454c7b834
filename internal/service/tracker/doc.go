// Package tracker runs the uwb-tracker process.
//
// Run loads settings, opens the roster, starts the tracking engine and wires
// the MQTT feed, the roster reloader, the gRPC API and the optional HTTP API
// under one errgroup so that the first failure stops everything.
package tracker
