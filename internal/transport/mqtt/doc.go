// Package mqtt connects the tracker to an MQTT broker.
//
// Subscriber forwards every message on the configured topic filter to a Sink,
// normally the tracking engine. Publisher is used by the simulator to emit
// synthetic anchor reports.
package mqtt
