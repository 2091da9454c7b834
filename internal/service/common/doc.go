// Package common holds helpers shared by several services.
//
// It provides a lightweight TrackingService client with per-call timeouts that
// decodes responses into domain types.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
