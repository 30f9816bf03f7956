package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionBusy        = errors.New("a session is already in progress")
	ErrStopUnavailable    = errors.New("stop is unavailable until the data channel opens")
	ErrMissingCredential  = errors.New("backend returned no client_secret.value")
	ErrEmptyVerification  = errors.New("at least one field is required to confirm")
	ErrStaleInvocation    = errors.New("tool call is no longer outstanding")
	ErrAutoplayBlocked    = errors.New("playback requires a user interaction")
	ErrChannelUnavailable = errors.New("data channel is not open")
)

// SetupError reports a failure in the start sequence.
type SetupError struct {
	Stage string // "media", "transport", "credential", "offer", "exchange", "answer"
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("session setup failed at %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// PersistError reports a failure in the stop-time persistence calls.
type PersistError struct {
	Phase string // "save", "analyze"
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
