// Package fault defines the failure taxonomy shared by the session and
// playback controllers. Every failure is terminal for the action that
// triggered it; nothing here is retried automatically.
package fault

import "fmt"

// ValidationError reports a precondition violated before any request was
// issued (blank topic, empty dialogue). The message names the violated
// precondition so the UI can surface it verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// TransportError reports a failed call across the transport boundary:
// network error, non-success reply, or a malformed payload. State owned
// by the caller reverts to its pre-request value.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Transport wraps err as a TransportError for the named operation.
func Transport(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// PlaybackError reports a media primitive failure. The bound resource is
// left in place so the user may retry manually.
type PlaybackError struct {
	Track string
	Err   error
}

func (e *PlaybackError) Error() string {
	if e.Track == "" {
		return "playback: " + e.Err.Error()
	}
	return "playback " + e.Track + ": " + e.Err.Error()
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// Playback wraps err as a PlaybackError for the named track.
func Playback(track string, err error) error {
	return &PlaybackError{Track: track, Err: err}
}
