// Package gateway implements the RPC transport to the OpenClaw gateway.
//
// # Protocol
//
// The gateway speaks a JSON-RPC-style protocol over one persistent WebSocket:
//
//	request:  {"id": 1, "method": "config.get", "params": {}}
//	response: {"id": 1, "result": {...}}
//	          {"id": 1, "error": {"message": "...", "code": 409}}
//
// Frames without a numeric id are asynchronous notifications and are never
// correlated with a call.
//
// # Request/Response Correlation
//
// Call allocates a monotonically increasing correlation id, registers a
// pending entry with a per-call deadline timer, sends one frame, and blocks
// until one of three outcomes removes the entry:
//
//   - a response frame with a matching id arrives (timer stopped)
//   - the deadline fires (ErrCallTimeout)
//   - the connection drops (ErrConnClosed, all pending calls fail)
//
// At most one pending entry exists per id, and ids are never reused while
// pending. A response arriving after its call timed out carries an unknown
// id and is dropped.
//
// # Connection Lifecycle
//
// The connection moves Disconnected → Connecting → Open. Concurrent connect
// requests share one in-flight attempt; a connect that exceeds the configured
// bound fails with ErrConnectTimeout and clears the in-flight marker so a
// later attempt can retry.
//
// No call is retried automatically at this layer. Transport errors propagate
// to the immediate caller, which owns retry policy.
package gateway
