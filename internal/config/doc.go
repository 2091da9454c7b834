// Package config defines the tracker settings shared by the uwb binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Validate fills defaults for every optional field, so a minimal file with
// only the MQTT broker is enough to start the tracker.
package config
