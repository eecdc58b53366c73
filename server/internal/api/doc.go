// Package api implements the HTTP REST API for the vitalops server.
//
// New(store, receiver, alerts, opts) returns an http.Handler that serves:
//
//	POST /api/vitals          validate and store a reading; 201 or 422
//	GET  /api/vitals/latest   most recent reading, or null
//	GET  /api/vitals/history  last ?limit= readings (default 10), oldest first
//	GET  /api/ping            fixed welcome message
//	GET  /api/health          reading count, latest timestamp, firing alerts
//	GET  /api/alerts          firing and recently resolved alerts
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for the wrong method
//
// Validation failures answer 422 with {"detail":[{"field":..,"message":..}]}.
// JSON types are defined in types.go. No external HTTP framework is used.
package api
