// Package api provides the HTTP REST API for the driving simulator.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"config_id": "sport"}, optional)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Vehicle:
//   - GET /api/sessions/{id}/snapshot - Current state, snapshot and advice
//   - POST /api/sessions/{id}/engine - Toggle the engine
//   - POST /api/sessions/{id}/clutch - {"value": 0..1}
//   - POST /api/sessions/{id}/gear - {"gear": -1..5}
//   - POST /api/sessions/{id}/throttle - {"value": 0..1}
//   - POST /api/sessions/{id}/brake - {"value": 0..1}
//   - POST /api/sessions/{id}/tick - {"dt": 1, "count": 10}
//   - POST /api/sessions/{id}/inputs - {"inputs": [...], "reset": false}
//   - POST /api/sessions/{id}/reset - Return the vehicle to rest
//   - GET /api/sessions/{id}/history - Paginated action history (?page&limit&order)
//
// Lessons and profiles:
//   - GET /api/lessons, GET /api/lessons/{id}
//   - GET /api/configs, POST /api/configs, GET /api/configs/{name}
//
// Other:
//   - GET /healthz
//   - GET /ws?session={id} - WebSocket state updates
//
// Status codes: unknown sessions, profiles and lessons are 404 (the lesson
// 404 body lists the available lessons), malformed bodies are 400. A control
// input the vehicle refuses (shifting without the clutch, starting in gear)
// is still 200 with "success": false and an "error" code, since the request
// itself was valid. Every control request broadcasts the resulting state to
// WebSocket clients watching the session.
package api
