package coordinator

import (
	"errors"
	"fmt"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

var (
	ErrRoomClosed = errors.New("room is closed")
	ErrRoomExists = errors.New("room already exists")
)

// RejectionError is returned when a command is refused. State is unchanged and nothing was broadcast.
type RejectionError struct {
	Code   events.ReasonCode
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func reject(code events.ReasonCode, format string, args ...interface{}) *RejectionError {
	return &RejectionError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the rejection code from err.
func ReasonOf(err error) (events.ReasonCode, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Code, true
	}
	return "", false
}
