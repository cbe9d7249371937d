// Package websocket pushes vehicle state updates to browsers watching a session.
//
// A central Hub owns every connection. Clients connect with ?session=<id>
// and receive a JSON Message after each state change of that session:
//
//	{"session_id": "ab12", "event": "state_update", "snapshot": {...}, "state": {...}}
//
// The hub map is confined to the Run goroutine; broadcasts are queued on a
// buffered channel and dropped when it is full, so a slow viewer never blocks
// a control request. Each client has a read pump (pong handling) and a write
// pump (messages plus periodic pings).
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	hub.BroadcastToSession(sessionID, state)
package websocket
