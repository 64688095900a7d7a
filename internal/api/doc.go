// Package api implements the HTTP REST API and WebSocket server for Gray Logic Fan.
//
// This package provides:
//   - REST endpoints to read fans and apply partial commands
//   - Endpoints to list, fire and inspect automations
//   - A paginated audit log of fan commands
//   - WebSocket hub for real-time fan.state_changed and automation.fired events
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Routes
//
//	GET  /api/v1/health
//	GET  /api/v1/metrics
//	GET  /api/v1/fans
//	GET  /api/v1/fans/{id}
//	GET  /api/v1/fans/{id}/state
//	PUT  /api/v1/fans/{id}/state          {"state":"ON","oscillating":true,"speed":"low"}
//	POST /api/v1/fans/{id}/toggle
//	GET  /api/v1/automations
//	GET  /api/v1/automations/{id}
//	POST /api/v1/automations/{id}/fire    {"payload":{...},"raw":"..."}
//	GET  /api/v1/automations/{id}/executions?limit=N
//	GET  /api/v1/audit?fan_id=&source=&limit=&offset=
//	GET  /api/v1/ws?channels=fan.state_changed,automation.fired
//
// Fan commands go through the control loop like every other frontend, so a
// change made over HTTP is published to MQTT and broadcast to WebSocket
// clients exactly as one made by an automation.
//
// The server operates without MQTT; only the broker status in /metrics
// changes.
package api
