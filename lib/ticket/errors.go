// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ticket

import "fmt"

// ErrorKind classifies a decode failure. The kinds call for different
// recovery: a malformed ticket should be re-entered, an unsupported one
// needs a newer client.
type ErrorKind int

const (
	// KindMalformed means the text is not a ticket in any layout this
	// package understands.
	KindMalformed ErrorKind = iota + 1

	// KindUnsupportedVersion means the text is well-formed up to the
	// version byte, which names an encoding this build does not know.
	KindUnsupportedVersion
)

func (kind ErrorKind) String() string {
	switch kind {
	case KindMalformed:
		return "malformed"
	case KindUnsupportedVersion:
		return "unsupported version"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(kind))
	}
}

// Error is returned by Decode. Callers can match kinds with errors.Is
// against ErrMalformed and ErrUnsupportedVersion, or extract the detail
// with errors.As:
//
//	var ticketErr *ticket.Error
//	if errors.As(err, &ticketErr) && ticketErr.Kind == ticket.KindUnsupportedVersion {
//	    ...
//	}
type Error struct {
	Kind ErrorKind

	// Version is the version byte found, set for KindUnsupportedVersion.
	Version byte

	// Detail describes what was wrong, for display.
	Detail string

	// Err is the underlying cause, if any (base32 or CBOR error).
	Err error
}

// Sentinels for errors.Is. They carry no detail.
var (
	ErrMalformed          = &Error{Kind: KindMalformed}
	ErrUnsupportedVersion = &Error{Kind: KindUnsupportedVersion}
)

func (e *Error) Error() string {
	switch {
	case e.Kind == KindUnsupportedVersion:
		return fmt.Sprintf("ticket: unsupported version %d", e.Version)
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("ticket: %s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("ticket: %s: %s", e.Kind, e.Detail)
	default:
		return "ticket: " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so the detail-free
// sentinels match every concrete decode failure of their kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}

func malformed(detail string, err error) *Error {
	return &Error{Kind: KindMalformed, Detail: detail, Err: err}
}
