// Package simulator publishes synthetic anchor reports for the roster.
//
// Every tick each tag takes a small random step inside the area spanned by the
// anchors, and every anchor reports its exact distance to every tag on
// uwb/<anchorId>/data. One tag periodically carries alert-level gas readings.
package simulator
