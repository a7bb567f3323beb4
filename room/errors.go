// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"errors"
	"fmt"
)

// SessionErrorKind classifies a SessionError.
type SessionErrorKind int

const (
	// KindAlreadyStarted: a second Open or Join on a started session.
	// The session is not affected.
	KindAlreadyStarted SessionErrorKind = iota + 1

	// KindNotActive: a Send before the session reached Active.
	KindNotActive

	// KindJoinFailed: the ticket did not decode, or no bootstrap peer
	// answered within the join window. The cause distinguishes the two
	// (errors.Is against ticket.ErrMalformed or
	// gossip.ErrNoPeersReachable) because the user's next step differs:
	// re-enter the ticket, or retry.
	KindJoinFailed

	// KindTransportUnavailable: the subscription failed or could not be
	// created. Ends the session.
	KindTransportUnavailable
)

func (kind SessionErrorKind) String() string {
	switch kind {
	case KindAlreadyStarted:
		return "already started"
	case KindNotActive:
		return "not active"
	case KindJoinFailed:
		return "join failed"
	case KindTransportUnavailable:
		return "transport unavailable"
	default:
		return fmt.Sprintf("SessionErrorKind(%d)", int(kind))
	}
}

// SessionError is a session-level failure. It is returned by Session
// and Engine methods and also delivered as an Event.
type SessionError struct {
	Kind SessionErrorKind

	// Err is the underlying cause, if any.
	Err error
}

func (e *SessionError) Error() string {
	if e.Err == nil {
		return "room session: " + e.Kind.String()
	}
	return fmt.Sprintf("room session: %s: %v", e.Kind, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Is matches any *SessionError of the same Kind, so the Err… sentinels
// work with errors.Is regardless of cause.
func (e *SessionError) Is(target error) bool {
	other, ok := target.(*SessionError)
	return ok && other.Kind == e.Kind
}

func (*SessionError) event() {}

// Terminal reports whether the error ends the session it occurred in.
func (e *SessionError) Terminal() bool {
	return e.Kind == KindJoinFailed || e.Kind == KindTransportUnavailable
}

// Sentinels for errors.Is.
var (
	ErrAlreadyStarted       = &SessionError{Kind: KindAlreadyStarted}
	ErrNotActive            = &SessionError{Kind: KindNotActive}
	ErrJoinFailed           = &SessionError{Kind: KindJoinFailed}
	ErrTransportUnavailable = &SessionError{Kind: KindTransportUnavailable}
)

var (
	// ErrCommandQueueFull is returned by CommandQueue.TrySend when the
	// queue is at capacity.
	ErrCommandQueueFull = errors.New("command queue full")

	// ErrCommandQueueClosed is returned by CommandQueue sends after
	// Close.
	ErrCommandQueueClosed = errors.New("command queue closed")

	// ErrRelayClosed is returned by EventRelay.Next once the relay is
	// closed and drained.
	ErrRelayClosed = errors.New("event relay closed")
)

func sessionError(kind SessionErrorKind, err error) *SessionError {
	return &SessionError{Kind: kind, Err: err}
}

// asSessionError returns err as a *SessionError, wrapping anything else
// as TransportUnavailable.
func asSessionError(err error) *SessionError {
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return sessionErr
	}
	return sessionError(KindTransportUnavailable, err)
}
