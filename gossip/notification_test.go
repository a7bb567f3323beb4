// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gossip

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func drain(t *testing.T, n *notifier) []Notification {
	t.Helper()
	var received []Notification
	timeout := time.After(waitTimeout)
	for {
		select {
		case notification, ok := <-n.output:
			if !ok {
				return received
			}
			received = append(received, notification)
		case <-timeout:
			t.Fatalf("output not closed after %d notifications", len(received))
		}
	}
}

func TestNotifierPreservesOrder(t *testing.T) {
	n := newNotifier()
	for i := range 100 {
		if !n.push(Notification{Kind: PeerDiscovered, Peer: fmt.Sprint(i)}) {
			t.Fatalf("push %d refused", i)
		}
	}
	errEnded := errors.New("ended")
	n.finish(&Notification{Kind: Failed, Err: errEnded})

	received := drain(t, n)
	if len(received) != 101 {
		t.Fatalf("received %d notifications, want 101", len(received))
	}
	for i, notification := range received[:100] {
		if notification.Peer != fmt.Sprint(i) {
			t.Fatalf("notification %d is for peer %q", i, notification.Peer)
		}
	}
	if last := received[100]; last.Kind != Failed || !errors.Is(last.Err, errEnded) {
		t.Errorf("last notification = %v, want Failed", last)
	}
}

func TestNotifierRefusesAfterFinish(t *testing.T) {
	n := newNotifier()
	n.finish(nil)
	if n.push(Notification{Kind: NeighborUp}) {
		t.Error("push after finish accepted")
	}
	n.finish(&Notification{Kind: Failed})
	if received := drain(t, n); len(received) != 0 {
		t.Errorf("received %v after finish(nil)", received)
	}
}

func TestNotifierAbandonDropsQueue(t *testing.T) {
	n := newNotifier()
	for range 10 {
		n.push(Notification{Kind: NeighborUp})
	}
	n.abandon()
	n.abandon()

	// The pump may have handed over at most the value it was blocked
	// sending before it saw the stop.
	if received := drain(t, n); len(received) > 1 {
		t.Errorf("received %d notifications after abandon", len(received))
	}
}

func TestNotificationKindString(t *testing.T) {
	for kind, want := range map[NotificationKind]string{
		NeighborUp:           "neighbor-up",
		Failed:               "failed",
		NotificationKind(99): "NotificationKind(99)",
	} {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
