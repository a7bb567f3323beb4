// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Signaler = (*MemorySignaler)(nil)

// MemorySignaler is an in-process Signaler for tests. Two
// WebRTCTransport instances sharing the same MemorySignaler can
// establish PeerConnections without any external signaling.
type MemorySignaler struct {
	mu       sync.Mutex
	offers   map[string]SignalMessage // key: "offerer|target"
	answers  map[string]SignalMessage // key: "offerer|answerer"
	lastSeen seenTracker
}

// NewMemorySignaler creates a new in-process signaler.
func NewMemorySignaler() *MemorySignaler {
	return &MemorySignaler{
		offers:   make(map[string]SignalMessage),
		answers:  make(map[string]SignalMessage),
		lastSeen: make(seenTracker),
	}
}

func (s *MemorySignaler) PublishOffer(_ context.Context, offerer, target, sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[signalKey(offerer, target)] = SignalMessage{Peer: offerer, SDP: sdp, Timestamp: time.Now()}
	return nil
}

func (s *MemorySignaler) PublishAnswer(_ context.Context, offerer, answerer, sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[signalKey(offerer, answerer)] = SignalMessage{Peer: answerer, SDP: sdp, Timestamp: time.Now()}
	return nil
}

func (s *MemorySignaler) PollOffers(_ context.Context, name string) ([]SignalMessage, error) {
	return s.poll(name, s.offers, "offers", matchOfferKey), nil
}

func (s *MemorySignaler) PollAnswers(_ context.Context, name string) ([]SignalMessage, error) {
	return s.poll(name, s.answers, "answers", matchAnswerKey), nil
}

func (s *MemorySignaler) poll(name string, store map[string]SignalMessage, storeLabel string, match signalKeyMatcher) []SignalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var messages []SignalMessage
	for key, message := range store {
		if _, ok := match(key, name); !ok {
			continue
		}
		if !s.lastSeen.fresh(storeLabel+":"+name+":"+key, message.Timestamp) {
			continue
		}
		messages = append(messages, message)
	}
	return messages
}
