// Package ws streams pipeline status to WebSocket clients.
//
// A Hub sends the current snapshot of every live project on connect, again
// on every tick of its interval, and immediately after any project completes
// a poll cycle (Hub is a poller.Publisher). Messages look like:
//
//	{
//	  "event": "status",
//	  "data":  {"projects": [...], "generated_at": "..."}
//	}
//
// data has the same schema as GET /{root}/status. The hub is mounted at
// /ws/stream.
package ws
