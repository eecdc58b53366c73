// Package ws implements the WebSocket hub that streams the latest vital-sign
// reading to dashboard clients.
//
// New(store, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker; it blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the latest
// reading immediately on connect, then streams it again on each tick.
// Hub.Notify pushes the latest reading at once; the receiver calls it after
// every stored reading.
//
// Message format sent to clients:
//
//	{
//	  "event": "vitals",
//	  "data":  { "spo2": 97.5, "hr": 72, "timestamp_server": "..." } | null
//	}
//
// Origins are checked with Hub.CheckOrigin when set; the server wires it to
// the CORS allow-list. The endpoint is mounted at /ws/stream.
package ws
