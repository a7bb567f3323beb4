// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"strings"
	"time"
)

// Signaler abstracts the mechanism for exchanging WebRTC session
// descriptions between peers. DirectorySignaler uses files in a shared
// directory; tests use MemorySignaler.
//
// The signaling model is vanilla ICE: all ICE candidates are gathered
// before the SDP is published, so connection establishment requires
// exactly one signaling round-trip (offer, then answer).
type Signaler interface {
	// PublishOffer publishes a complete SDP offer from the node named
	// offerer to the node named target. A newer offer for the same pair
	// replaces an older one.
	PublishOffer(ctx context.Context, offerer, target, sdp string) error

	// PublishAnswer publishes a complete SDP answer from answerer in
	// response to an offer from offerer.
	PublishAnswer(ctx context.Context, offerer, answerer, sdp string) error

	// PollOffers returns offers directed at name that are newer than
	// the last poll saw.
	PollOffers(ctx context.Context, name string) ([]SignalMessage, error)

	// PollAnswers returns answers to offers made by name that are newer
	// than the last poll saw.
	PollAnswers(ctx context.Context, name string) ([]SignalMessage, error)
}

// SignalMessage represents a signaling message (offer or answer).
type SignalMessage struct {
	// Peer is the name of the other party. For received offers, this is
	// the offerer. For received answers, this is the answerer.
	Peer string

	// SDP is the complete Session Description Protocol string with all
	// ICE candidates embedded.
	SDP string

	// Timestamp is when the signal was published.
	Timestamp time.Time
}

// signalingSeparator separates the offerer and target names in a
// signal key. Node names may not contain it.
const signalingSeparator = "|"

func signalKey(offerer, target string) string {
	return offerer + signalingSeparator + target
}

// signalKeyMatcher reports the peer named by key and whether the key
// is relevant to name.
type signalKeyMatcher func(key, name string) (peer string, ok bool)

// matchOfferKey matches "offerer|name" keys: offers directed at name.
func matchOfferKey(key, name string) (string, bool) {
	offerer, target, found := strings.Cut(key, signalingSeparator)
	if !found || target != name {
		return "", false
	}
	return offerer, true
}

// matchAnswerKey matches "name|answerer" keys: answers to name's offers.
func matchAnswerKey(key, name string) (string, bool) {
	offerer, answerer, found := strings.Cut(key, signalingSeparator)
	if !found || offerer != name {
		return "", false
	}
	return answerer, true
}

// seenTracker filters signals already returned by an earlier poll.
// Keys are "store:consumer:signalkey" so offers and answers, and each
// consumer, are tracked independently.
type seenTracker map[string]time.Time

// fresh reports whether timestamp is newer than the last one recorded
// for key, and records it if so.
func (s seenTracker) fresh(key string, timestamp time.Time) bool {
	if last, ok := s[key]; ok && !timestamp.After(last) {
		return false
	}
	s[key] = timestamp
	return true
}
