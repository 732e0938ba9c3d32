package client

import (
	"errors"
	"fmt"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

var (
	// ErrNotConnected is returned for commands issued while the session is not CONNECTED.
	ErrNotConnected = errors.New("not connected to draft room")
	// ErrConnectionFailed is the terminal error after the reconnect attempts are used up.
	ErrConnectionFailed = errors.New("connection to draft room failed")
	// ErrAckTimeout means a command got no acknowledgment in time. It is never retried.
	ErrAckTimeout = errors.New("timed out waiting for command acknowledgment")
	// ErrHeartbeatTimeout means the coordinator stopped answering PINGs on an open session.
	ErrHeartbeatTimeout = errors.New("draft room stopped answering heartbeats")
	// ErrNoTarget is returned by Retry before any Connect.
	ErrNoTarget = errors.New("no draft room to reconnect to")
)

// CommandRejectedError is a command refused by the coordinator, or refused locally
// because the cached room state already shows it cannot succeed.
type CommandRejectedError struct {
	RequestID string
	Code      events.ReasonCode
	Reason    string
	Local     bool
}

func (e *CommandRejectedError) Error() string {
	if e.Local {
		return fmt.Sprintf("%s (local): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func localReject(code events.ReasonCode, format string, args ...interface{}) error {
	return &CommandRejectedError{Code: code, Reason: fmt.Sprintf(format, args...), Local: true}
}

// IsConnectionError reports whether err belongs to the connection category rather than
// being a rejected command. UIs use it to tell "disconnected" apart from "not your turn".
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrAckTimeout) ||
		errors.Is(err, ErrHeartbeatTimeout)
}

// RejectionCode returns the reason code carried by a rejection.
func RejectionCode(err error) (events.ReasonCode, bool) {
	var rej *CommandRejectedError
	if errors.As(err, &rej) {
		return rej.Code, true
	}
	return "", false
}
