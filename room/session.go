// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bureau-foundation/gossip/gossip"
	"github.com/bureau-foundation/gossip/lib/ticket"
)

// DefaultJoinTimeout bounds Join when no timeout is configured.
const DefaultJoinTimeout = 10 * time.Second

// SessionState is where a Session is in its life.
type SessionState int

const (
	Uninitialized SessionState = iota
	Opening
	Joining
	Active
	Closed
)

func (state SessionState) String() string {
	switch state {
	case Uninitialized:
		return "uninitialized"
	case Opening:
		return "opening"
	case Joining:
		return "joining"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(state))
	}
}

// Session is the state of one room: its topic, its ticket, and the
// transport subscription. It is not safe for concurrent use; the
// Supervisor is its only user.
type Session struct {
	transport   Transport
	joinTimeout time.Duration
	logger      *slog.Logger

	state        SessionState
	topic        ticket.TopicID
	ticket       ticket.Ticket
	subscription Subscription
}

// NewSession returns an Uninitialized session on transport. A
// joinTimeout of zero means DefaultJoinTimeout; a nil logger discards.
func NewSession(transport Transport, joinTimeout time.Duration, logger *slog.Logger) *Session {
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{transport: transport, joinTimeout: joinTimeout, logger: logger}
}

// State returns the session state.
func (s *Session) State() SessionState { return s.state }

// Topic returns the room's topic, zero before Create or Join succeeds.
func (s *Session) Topic() ticket.TopicID { return s.topic }

// Ticket returns a ticket others can join the room with: this node
// first, then any peers the session joined through.
func (s *Session) Ticket() ticket.Ticket { return s.ticket }

// Create opens a room on topic, or on a freshly generated topic when
// topic is nil, and returns its ticket. No peers are needed.
func (s *Session) Create(ctx context.Context, topic *ticket.TopicID) (ticket.Ticket, error) {
	if s.state != Uninitialized {
		return ticket.Ticket{}, sessionError(KindAlreadyStarted, nil)
	}
	s.state = Opening

	var id ticket.TopicID
	if topic != nil {
		id = *topic
	} else {
		generated, err := freshTopic()
		if err != nil {
			s.state = Closed
			return ticket.Ticket{}, sessionError(KindTransportUnavailable, err)
		}
		id = generated
	}

	subscription, err := s.transport.Subscribe(ctx, id, nil)
	if err != nil {
		s.state = Closed
		return ticket.Ticket{}, sessionError(KindTransportUnavailable, fmt.Errorf("subscribing to %s: %w", id.Short(), err))
	}

	s.activate(id, subscription, nil)
	s.logger.Info("room created", "topic", id.Short())
	return s.ticket, nil
}

// Join enters the room a ticket describes. Decode failures and failure
// to reach any bootstrap peer within the join window are both
// KindJoinFailed; the wrapped cause tells them apart. A ticket naming no
// peer other than this node fails at once with ErrNoPeersReachable.
func (s *Session) Join(ctx context.Context, text string) error {
	if s.state != Uninitialized {
		return sessionError(KindAlreadyStarted, nil)
	}
	s.state = Joining

	joined, err := ticket.Decode(text)
	if err != nil {
		s.state = Closed
		return sessionError(KindJoinFailed, err)
	}

	self := s.transport.Address()
	if !slices.ContainsFunc(joined.Bootstrap, func(peer ticket.PeerAddress) bool {
		return peer != "" && peer != self
	}) {
		s.state = Closed
		return sessionError(KindJoinFailed, fmt.Errorf("joining %s: %w", joined.Topic.Short(), gossip.ErrNoPeersReachable))
	}

	ctx, cancel := context.WithTimeout(ctx, s.joinTimeout)
	defer cancel()
	subscription, err := s.transport.Subscribe(ctx, joined.Topic, joined.Bootstrap)
	if err != nil {
		s.state = Closed
		return sessionError(KindJoinFailed, fmt.Errorf("joining %s: %w", joined.Topic.Short(), err))
	}

	s.activate(joined.Topic, subscription, joined.Bootstrap)
	s.logger.Info("room joined", "topic", joined.Topic.Short(), "bootstrap", len(joined.Bootstrap))
	return nil
}

func (s *Session) activate(topic ticket.TopicID, subscription Subscription, peers []ticket.PeerAddress) {
	self := s.transport.Address()
	bootstrap := []ticket.PeerAddress{self}
	for _, peer := range peers {
		if peer != self {
			bootstrap = append(bootstrap, peer)
		}
	}
	s.topic = topic
	s.subscription = subscription
	s.ticket = ticket.Ticket{Topic: topic, Bootstrap: bootstrap}
	s.state = Active
}

// Send publishes text to the room. Delivery is not confirmed.
func (s *Session) Send(ctx context.Context, text string) error {
	if s.state != Active {
		return sessionError(KindNotActive, nil)
	}
	payload, err := encodeChat(strings.ToValidUTF8(text, "�"))
	if err != nil {
		return sessionError(KindTransportUnavailable, err)
	}
	if err := s.subscription.Publish(ctx, payload); err != nil {
		return sessionError(KindTransportUnavailable, fmt.Errorf("publishing: %w", err))
	}
	return nil
}

// Notifications returns the subscription's notification stream, or nil
// (which blocks forever in a select) when there is no subscription.
func (s *Session) Notifications() <-chan gossip.Notification {
	if s.subscription == nil {
		return nil
	}
	return s.subscription.Notifications()
}

// Normalize maps a transport notification to an Event. Notifications
// with no Event equivalent, and messages whose payload does not
// decode, report false.
func (s *Session) Normalize(notification gossip.Notification) (Event, bool) {
	switch notification.Kind {
	case gossip.NeighborUp:
		return PeerJoined{Peer: ticket.PeerAddress(notification.Peer)}, true
	case gossip.NeighborDown:
		return PeerLeft{Peer: ticket.PeerAddress(notification.Peer)}, true
	case gossip.Message:
		text, err := decodeChat(notification.Payload)
		if err != nil {
			s.logger.Debug("dropping undecodable chat message", "peer", notification.Peer, "error", err)
			return nil, false
		}
		return MessageReceived{From: ticket.PeerAddress(notification.Peer), Text: text}, true
	case gossip.Failed:
		cause := notification.Err
		if cause == nil {
			cause = errors.New("subscription failed")
		}
		return sessionError(KindTransportUnavailable, cause), true
	default:
		return nil, false
	}
}

// Close releases the subscription. The session cannot be reused.
func (s *Session) Close() error {
	s.state = Closed
	if s.subscription == nil {
		return nil
	}
	subscription := s.subscription
	s.subscription = nil
	return subscription.Close()
}
