package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SessionID string

func NewSessionID() SessionID { return SessionID(uuid.NewString()) }

// SessionState is the transport state of one streaming session.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateConnecting
	StateOpen
	StateClosed
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether no further transition is allowed.
func (s SessionState) Terminal() bool {
	return s == StateClosed || s == StateError
}

// CanTransition encodes Idle -> Connecting -> Open -> Closed with Error
// reachable from Connecting or Open.
func (s SessionState) CanTransition(to SessionState) bool {
	switch s {
	case StateIdle:
		return to == StateConnecting
	case StateConnecting:
		return to == StateOpen || to == StateError || to == StateClosed
	case StateOpen:
		return to == StateClosed || to == StateError
	}
	return false
}

// SessionConfig is negotiated once at open.
type SessionConfig struct {
	Model             string
	Voice             string
	ResponseModality  string
	SystemInstruction string
	SetupTimeout      time.Duration
	SendBuffer        int
	WriteTimeout      time.Duration
}

const (
	DefaultVoice    = "Kore"
	ModalityAudio   = "AUDIO"
	LiveModeSuffix  = "You are currently in 'Live Voice Mode'. You can see what the user shows you via their camera. Be helpful, concise, and friendly."
	DefaultPersona  = "You are a helpful, friendly voice assistant."
	StatusSeeHear   = "I can see and hear you."
	StatusListening = "I'm listening..."
	StatusInit      = "Initializing..."
)

// LiveInstruction joins the persona text with the live-mode suffix.
func LiveInstruction(persona string) string {
	if persona == "" {
		return LiveModeSuffix
	}
	return persona + "\n\n" + LiveModeSuffix
}
