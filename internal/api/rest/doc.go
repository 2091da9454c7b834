// Package rest serves the tracker HTTP API with gin.
//
// Read endpoints expose the snapshot store and the debug log. Roster
// endpoints edit the roster repository and ask the tracker to reload it.
// When credentials are configured, roster edits and the debug log require a
// session cookie obtained from /api/auth/login.
package rest
