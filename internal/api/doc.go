// Package api implements the local HTTP API and WebSocket feed for the
// appliance registry.
//
// This package provides:
//   - REST endpoints to read appliance snapshots and properties
//   - Live reads of programs, commands, status and settings from Home Connect
//   - Control endpoints for settings, programs, commands and power
//   - Property history queries when a history store is configured
//   - The command audit trail, recording who sent which command
//   - A WebSocket hub pushing appliance.changed messages
//   - Scoped JWT authentication (read, control) with single-use WebSocket tickets
//
// # Security
//
// Every /api/v1 route except /health and /ws requires a bearer token signed
// with the configured secret. Control routes require the control scope.
// WebSocket connections use tickets so tokens never appear in URLs.
//
// # Commands
//
// Command endpoints answer 202 Accepted once Home Connect accepts the
// request. The resulting state change arrives on the appliance's event
// stream and is pushed to WebSocket clients like any other change. Each
// command, accepted or rejected, is written to the audit log when one is
// configured.
package api
