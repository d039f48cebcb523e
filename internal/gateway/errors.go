// ABOUTME: Error taxonomy for the gateway RPC transport.
// ABOUTME: Distinguishes connect, disconnect, timeout, and remote-reported failures.

package gateway

import (
	"errors"
	"fmt"
)

// Transport errors. Each failure mode is distinguishable via errors.Is so
// callers can tell a timeout from a disconnect from a remote rejection.
var (
	// ErrConnectTimeout means the underlying connection open did not
	// complete within the configured bound.
	ErrConnectTimeout = errors.New("gateway connect timed out")

	// ErrConnClosed means a pending call was invalidated because the
	// connection dropped (explicitly or remote-initiated).
	ErrConnClosed = errors.New("gateway connection closed")

	// ErrCallTimeout means no response arrived within the request deadline.
	ErrCallTimeout = errors.New("gateway call timed out")
)

// RemoteError is an explicit error frame returned by the peer.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway remote error %d", e.Code)
	}
	return fmt.Sprintf("gateway remote error %d: %s", e.Code, e.Message)
}
