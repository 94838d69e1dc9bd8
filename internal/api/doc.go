// Package api provides the HTTP REST API and WebSocket endpoint of the
// dorm power backend.
//
// It exposes device listings, live strip status, telemetry series,
// command submission and tracking, room power reports and account
// operations to the web dashboard, and pushes bridge events to
// connected WebSocket clients.
//
// The server follows the usual lifecycle pattern:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
