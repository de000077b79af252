// Package ws implements the WebSocket hub for stewardlens-server.
//
// Hub manages a set of connected clients and broadcasts the current
// congregation snapshot to all of them on a configurable interval (default 5s)
// and immediately after each new assessment. The hub satisfies the receiver's
// Observer interface through Observe.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by the server.
package ws
