// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ticket

import (
	"encoding/base32"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bureau-foundation/gossip/lib/codec"
)

// Prefix starts every ticket. It makes a pasted ticket recognizable at
// a glance and rejects most accidental input before any decoding.
const Prefix = "room"

// Version is the encoding version written by Encode.
const Version byte = 1

// encoding is RFC 4648 base32 with the lowercase alphabet and no
// padding: only a-z and 2-7, nothing a terminal or chat client would
// split or escape.
var encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// PeerAddress is a transport address for reaching a bootstrap peer:
// "host:port" for TCP, a machine localpart for WebRTC. The ticket codec
// treats it as opaque text.
type PeerAddress string

// Ticket is everything a joiner needs to find a room.
type Ticket struct {
	// Topic is the room's gossip topic.
	Topic TopicID

	// Bootstrap lists peers to contact first, in preference order.
	Bootstrap []PeerAddress
}

// payload is the CBOR body of a version 1 ticket.
type payload struct {
	Topic     []byte   `cbor:"1,keyasint"`
	Bootstrap []string `cbor:"2,keyasint,omitempty"`
}

// Encode returns the text form of a ticket for topic and bootstrap.
// Bootstrap entries must be non-empty valid UTF-8; others are left out,
// so the result always decodes.
func Encode(topic TopicID, bootstrap []PeerAddress) string {
	return Ticket{Topic: topic, Bootstrap: bootstrap}.String()
}

// String returns the ticket's text form, with the same bootstrap
// filtering as Encode.
func (t Ticket) String() string {
	body := payload{Topic: t.Topic[:]}
	for _, address := range t.Bootstrap {
		if address == "" || !utf8.ValidString(string(address)) {
			continue
		}
		body.Bootstrap = append(body.Bootstrap, string(address))
	}

	encoded, err := codec.Marshal(body)
	if err != nil {
		// A byte string and a list of valid text strings always encode.
		panic("ticket: encoding payload: " + err.Error())
	}

	raw := make([]byte, 0, 1+len(encoded))
	raw = append(raw, Version)
	raw = append(raw, encoded...)
	return Prefix + encoding.EncodeToString(raw)
}

// Equal reports whether two tickets describe the same topic and the
// same bootstrap sequence. A nil and an empty bootstrap list are equal.
func (t Ticket) Equal(other Ticket) bool {
	return t.Topic == other.Topic && slices.Equal(t.Bootstrap, other.Bootstrap)
}

// Decode parses a ticket produced by Encode. Surrounding whitespace is
// ignored and letters are case-folded, since tickets travel through
// copy-paste. All failures are *Error values.
func Decode(text string) (Ticket, error) {
	raw, err := decodeRaw(text)
	if err != nil {
		return Ticket{}, err
	}

	switch version := raw[0]; version {
	case Version:
		return decodeV1(raw[1:])
	case 0:
		return Ticket{}, malformed("version byte is zero", nil)
	default:
		return Ticket{}, &Error{Kind: KindUnsupportedVersion, Version: version}
	}
}

// Payload returns the version byte and raw CBOR payload of a ticket
// without interpreting the payload. Used for diagnostics.
func Payload(text string) (byte, []byte, error) {
	raw, err := decodeRaw(text)
	if err != nil {
		return 0, nil, err
	}
	return raw[0], raw[1:], nil
}

func decodeRaw(text string) ([]byte, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil, malformed("empty ticket", nil)
	}
	body, ok := strings.CutPrefix(text, Prefix)
	if !ok {
		return nil, malformed(fmt.Sprintf("missing %q prefix", Prefix), nil)
	}
	raw, err := encoding.DecodeString(body)
	if err != nil {
		return nil, malformed("invalid base32", err)
	}
	if len(raw) == 0 {
		return nil, malformed("no version byte", nil)
	}
	return raw, nil
}

func decodeV1(data []byte) (Ticket, error) {
	if len(data) == 0 {
		return Ticket{}, malformed("empty payload", nil)
	}

	var body payload
	if err := codec.Unmarshal(data, &body); err != nil {
		return Ticket{}, malformed("invalid payload", err)
	}
	if len(body.Topic) != TopicIDSize {
		return Ticket{}, malformed(fmt.Sprintf("topic is %d bytes, want %d", len(body.Topic), TopicIDSize), nil)
	}

	var decoded Ticket
	copy(decoded.Topic[:], body.Topic)
	for index, address := range body.Bootstrap {
		if address == "" {
			return Ticket{}, malformed(fmt.Sprintf("bootstrap entry %d is empty", index), nil)
		}
		decoded.Bootstrap = append(decoded.Bootstrap, PeerAddress(address))
	}
	return decoded, nil
}
