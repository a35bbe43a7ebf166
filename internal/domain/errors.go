package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoInputDevice       = errors.New("no input device")
	ErrNoVideoDevice       = errors.New("no video device")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNoCamera            = errors.New("no camera detected")
	ErrDecode              = errors.New("decode failed")
	ErrEncodingUnsupported = errors.New("encoding unsupported")
	ErrTransport           = errors.New("transport failure")
	ErrSessionClosed       = errors.New("session closed")
	ErrBackpressure        = errors.New("backpressure")
	ErrInvalidTransition   = errors.New("invalid state transition")
)

// DeviceError wraps a failed acquisition attempt.
type DeviceError struct {
	Request DeviceRequest
	Err     error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Request, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// TransportError is terminal for the session it came from.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// UserMessage is the short status string shown to the user.
func (e *TransportError) UserMessage() string {
	if e.Op == "dial" || e.Op == "setup" {
		return "Could not connect."
	}
	return "Connection lost."
}

// UserMessage maps any lifecycle error to a status line.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.UserMessage()
	}
	if errors.Is(err, ErrNoInputDevice) || errors.Is(err, ErrPermissionDenied) {
		return "Microphone access denied or not available."
	}
	if errors.Is(err, ErrNoCamera) {
		return "No camera detected."
	}
	return "Connection lost."
}
