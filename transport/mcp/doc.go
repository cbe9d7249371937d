// Package mcp exposes the driving simulator to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call is translated into a request
// against the REST API and the JSON response is rendered as text for the
// agent. It holds no simulator state of its own.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - vehicle_state: dashboard plus recommended gear and RPM risk
//   - toggle_engine, set_clutch, shift_gear, set_throttle, set_brake
//   - tick, apply_inputs, reset_vehicle
//   - action_history
//   - list_lessons, get_lesson, list_configs, driving_instructions
//
// Refused inputs (shifting without the clutch, starting in gear) are not tool
// errors; they are reported in the text with their error code so the agent
// can correct itself. Transport failures and unknown sessions are returned
// as tool errors.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
