// Package pb describes the uwbtracker.v1 TrackingService gRPC contract.
//
// Requests and responses use well-known protobuf types, so the service needs
// no generated message code: list calls take google.protobuf.Empty and return
// a google.protobuf.Struct holding one list field.
package pb
