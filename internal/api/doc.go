// Package api implements the read-only HTTP query API and resolution stream
// for devcaps.
//
// Routes, all under /api/v1:
//   - GET  /health                 liveness and table size
//   - GET  /metrics                runtime, table, resolver and bridge counters
//   - GET  /report                 the compile report of the running table
//   - GET  /devices                compiled device types
//   - GET  /devices/{type}         one compiled entry with its modes
//   - POST /devices/{type}/resolve resolve a posted snapshot
//   - GET  /ws                     WebSocket stream of published resolutions,
//     filtered by device_type and device_id
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Graceful Degradation
//
// Without MQTT the query routes work and WebSocket clients connect, but no
// resolution frames arrive.
package api
