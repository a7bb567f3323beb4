// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/gossip/gossip"
	"github.com/bureau-foundation/gossip/lib/testutil"
	"github.com/bureau-foundation/gossip/lib/ticket"
)

const waitTimeout = 5 * time.Second

// fakeTransport records subscriptions and hands out fakeSubscriptions.
type fakeTransport struct {
	address ticket.PeerAddress

	// subscribeErr, if set, fails every Subscribe.
	subscribeErr error

	// gate, if set, holds each Subscribe until it is closed.
	gate chan struct{}

	// publish, if set, runs before each Publish is recorded; a non-nil
	// return fails the Publish.
	publish func(ctx context.Context, text string) error

	mu            sync.Mutex
	subscriptions []*fakeSubscription
	bootstraps    [][]ticket.PeerAddress
}

var _ Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{address: "self:1"}
}

func (f *fakeTransport) Subscribe(ctx context.Context, topic ticket.TopicID, bootstrap []ticket.PeerAddress) (Subscription, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bootstraps = append(f.bootstraps, slices.Clone(bootstrap))
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	subscription := &fakeSubscription{
		topic:         topic,
		notifications: make(chan gossip.Notification, 256),
		publish:       f.publish,
	}
	f.subscriptions = append(f.subscriptions, subscription)
	return subscription, nil
}

func (f *fakeTransport) Address() ticket.PeerAddress { return f.address }

func (f *fakeTransport) subscribeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bootstraps)
}

// only returns the single subscription, failing if Subscribe was not
// called exactly once.
func (f *fakeTransport) only(t *testing.T) *fakeSubscription {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subscriptions) != 1 {
		t.Fatalf("%d subscriptions, want 1", len(f.subscriptions))
	}
	return f.subscriptions[0]
}

type fakeSubscription struct {
	topic         ticket.TopicID
	notifications chan gossip.Notification
	publish       func(ctx context.Context, text string) error

	mu        sync.Mutex
	published []string
	closed    bool
}

func (s *fakeSubscription) Publish(ctx context.Context, payload []byte) error {
	text, err := decodeChat(payload)
	if err != nil {
		return err
	}
	if s.publish != nil {
		if err := s.publish(ctx, text); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, text)
	return nil
}

func (s *fakeSubscription) Notifications() <-chan gossip.Notification { return s.notifications }

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSubscription) deliver(notification gossip.Notification) {
	s.notifications <- notification
}

func (s *fakeSubscription) message(from, text string) gossip.Notification {
	payload, err := encodeChat(text)
	if err != nil {
		panic(err)
	}
	return gossip.Notification{Kind: gossip.Message, Peer: from, Via: from, Payload: payload}
}

func (s *fakeSubscription) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.published)
}

func (s *fakeSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// startEngine starts an engine on transport and stops it when the test
// ends.
func startEngine(t *testing.T, transport Transport, options Options) *Engine {
	t.Helper()
	engine := NewEngine(transport, options)
	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	t.Cleanup(func() {
		engine.Close()
		cancel()
		testutil.RequireClosed(t, engine.Done(), waitTimeout, "engine stopped")
	})
	return engine
}

// nextEvent returns the engine's next event.
func nextEvent(t *testing.T, engine *Engine) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	event, err := engine.Events().Next(ctx)
	if err != nil {
		t.Fatalf("Events().Next: %v", err)
	}
	return event
}

// requireRelayClosed drains the relay, failing on any further event.
func requireRelayClosed(t *testing.T, engine *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	event, err := engine.Events().Next(ctx)
	if err != ErrRelayClosed {
		t.Fatalf("after final event got %v, %v; want ErrRelayClosed", event, err)
	}
}

// waitState polls until the engine reaches state.
func waitState(t *testing.T, engine *Engine, state SupervisorState) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for engine.State() != state {
		if time.Now().After(deadline) {
			t.Fatalf("engine state %s, want %s", engine.State(), state)
		}
		time.Sleep(time.Millisecond)
	}
}

// requireSessionError checks that event is a *SessionError of kind.
func requireSessionError(t *testing.T, event Event, kind SessionErrorKind) *SessionError {
	t.Helper()
	failure, ok := event.(*SessionError)
	if !ok {
		t.Fatalf("event %#v, want *SessionError", event)
	}
	if failure.Kind != kind {
		t.Fatalf("SessionError kind %s (%v), want %s", failure.Kind, failure, kind)
	}
	return failure
}
