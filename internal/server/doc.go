// Package server implements the WebSocket broadcast hub for SensorHub.
//
// The implementation is organized into specialized files for configuration,
// the connection registry, outbound dispatch, the message protocol, clients,
// routing, and HTTP handlers. A single App value owns the registry and the
// sensor roster and is passed to every handler; there is no package-level
// mutable state.
package server
