// Package tracking implements the gRPC transport for the tracking service.
//
// It converts snapshot state to protobuf Struct values and back, and exposes a
// server that reads from a provided snapshot reader.
package tracking
