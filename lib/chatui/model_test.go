// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/gossip/gossip"
	"github.com/bureau-foundation/gossip/lib/codec"
	"github.com/bureau-foundation/gossip/lib/testutil"
	"github.com/bureau-foundation/gossip/lib/ticket"
	"github.com/bureau-foundation/gossip/room"
)

const waitTimeout = 5 * time.Second

// fakeTransport hands out in-memory subscriptions. With gate set,
// Subscribe blocks until the gate closes.
type fakeTransport struct {
	gate         chan struct{}
	subscribeErr error

	mu            sync.Mutex
	subscriptions []*fakeSubscription
}

func (f *fakeTransport) Subscribe(ctx context.Context, topic ticket.TopicID, bootstrap []ticket.PeerAddress) (room.Subscription, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	subscription := &fakeSubscription{notifications: make(chan gossip.Notification, 16)}
	f.mu.Lock()
	f.subscriptions = append(f.subscriptions, subscription)
	f.mu.Unlock()
	return subscription, nil
}

func (f *fakeTransport) Address() ticket.PeerAddress { return "self:1" }

func (f *fakeTransport) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []string
	for _, subscription := range f.subscriptions {
		texts = append(texts, subscription.sent()...)
	}
	return texts
}

type fakeSubscription struct {
	notifications chan gossip.Notification

	mu        sync.Mutex
	published []string
}

func (s *fakeSubscription) Publish(ctx context.Context, payload []byte) error {
	var message struct {
		Text string `cbor:"1,keyasint"`
	}
	if err := codec.Unmarshal(payload, &message); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, message.Text)
	return nil
}

func (s *fakeSubscription) Notifications() <-chan gossip.Notification { return s.notifications }

func (s *fakeSubscription) Close() error { return nil }

func (s *fakeSubscription) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.published)
}

// harness builds models whose engines run on one fake transport and are
// stopped when the test ends.
type harness struct {
	t         *testing.T
	ctx       context.Context
	transport *fakeTransport

	mu      sync.Mutex
	engines []*room.Engine
}

func newHarness(t *testing.T, transport *fakeTransport) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{t: t, ctx: ctx, transport: transport}
	t.Cleanup(func() {
		cancel()
		h.mu.Lock()
		engines := slices.Clone(h.engines)
		h.mu.Unlock()
		for _, engine := range engines {
			engine.Close()
			testutil.RequireClosed(t, engine.Done(), waitTimeout, "engine did not stop")
		}
	})
	return h
}

func (h *harness) newEngine() *room.Engine {
	engine := room.NewEngine(h.transport, room.Options{})
	h.mu.Lock()
	h.engines = append(h.engines, engine)
	h.mu.Unlock()
	return engine
}

func (h *harness) engineCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.engines)
}

func (h *harness) model(config Config) Model {
	config.NewEngine = h.newEngine
	return NewModel(h.ctx, config)
}

// next runs the listen command for the model's engine and feeds the
// resulting message back through Update.
func (h *harness) next(model Model) (Model, tea.Msg) {
	h.t.Helper()
	type result struct{ message tea.Msg }
	done := make(chan result, 1)
	go func() { done <- result{listenForEvent(h.ctx, model.Engine())()} }()
	received := testutil.RequireReceive(h.t, done, waitTimeout, "no event from engine")
	return update(h.t, model, received.message), received.message
}

func update(t *testing.T, model Model, message tea.Msg) Model {
	t.Helper()
	updated, _ := model.Update(message)
	result, ok := updated.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", updated)
	}
	return result
}

func typeText(t *testing.T, model Model, text string) Model {
	t.Helper()
	return update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func press(t *testing.T, model Model, keyType tea.KeyType) Model {
	t.Helper()
	return update(t, model, tea.KeyMsg{Type: keyType})
}

func waitForState(t *testing.T, engine *room.Engine, want room.SupervisorState) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for engine.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("engine state = %s, want %s", engine.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitForPublished(t *testing.T, transport *fakeTransport, want []string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !slices.Equal(transport.published(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("published = %q, want %q", transport.published(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func sampleTicket() string {
	return ticket.Encode(ticket.TopicFromName("chatui-test"), []ticket.PeerAddress{"peer:1"})
}

// createdRoom returns a model in a created room whose TicketReady has
// been processed.
func createdRoom(t *testing.T, h *harness) (Model, string) {
	t.Helper()
	model := press(t, h.model(Config{}), tea.KeyCtrlN)
	model, message := h.next(model)
	event, ok := message.(eventMsg)
	if !ok {
		t.Fatalf("first message = %#v, want eventMsg", message)
	}
	ready, ok := event.event.(room.TicketReady)
	if !ok {
		t.Fatalf("first event = %#v, want TicketReady", event.event)
	}
	waitForState(t, model.Engine(), room.Running)
	return model, ready.Ticket
}

func TestLobbyRejectsMalformedTicket(t *testing.T) {
	h := newHarness(t, &fakeTransport{})
	model := h.model(Config{})

	model = typeText(t, model, "definitely-not-a-ticket")
	model = press(t, model, tea.KeyEnter)

	if model.screen != screenLobby {
		t.Fatalf("screen = %d, want lobby", model.screen)
	}
	if !strings.Contains(model.lobbyError, "ticket:") {
		t.Errorf("lobbyError = %q, want a ticket decode error", model.lobbyError)
	}
	if model.input.Value() != "definitely-not-a-ticket" {
		t.Errorf("input = %q, want the text kept for editing", model.input.Value())
	}
	if h.engineCount() != 0 {
		t.Errorf("%d engines started for a malformed ticket", h.engineCount())
	}
	if !strings.Contains(model.View(), "ticket:") {
		t.Error("lobby view does not show the error")
	}
}

func TestLobbyEmptyJoinShowsHint(t *testing.T) {
	h := newHarness(t, &fakeTransport{})
	model := press(t, h.model(Config{}), tea.KeyEnter)

	if model.screen != screenLobby || model.lobbyError == "" {
		t.Fatalf("screen = %d, lobbyError = %q; want lobby with a hint", model.screen, model.lobbyError)
	}
	if h.engineCount() != 0 {
		t.Error("engine started without a ticket")
	}
}

func TestAutoJoinMalformedLandsInLobby(t *testing.T) {
	h := newHarness(t, &fakeTransport{})
	model := h.model(Config{Join: "garbage"})

	if model.screen != screenLobby {
		t.Fatalf("screen = %d, want lobby", model.screen)
	}
	if model.input.Value() != "garbage" {
		t.Errorf("input = %q, want %q", model.input.Value(), "garbage")
	}
}

func TestCreateShowsTicket(t *testing.T) {
	h := newHarness(t, &fakeTransport{})
	model, text := createdRoom(t, h)

	if model.screen != screenChat {
		t.Fatalf("screen = %d, want chat", model.screen)
	}
	if model.ticket != text {
		t.Errorf("banner ticket = %q, want %q", model.ticket, text)
	}
	view := model.View()
	if !strings.Contains(view, "ticket: "+text[:10]) {
		t.Errorf("view does not show the ticket:\n%s", view)
	}
	if _, err := ticket.Decode(text); err != nil {
		t.Errorf("TicketReady ticket does not decode: %v", err)
	}
}

func TestCreateWithTopic(t *testing.T) {
	h := newHarness(t, &fakeTransport{})
	topic := ticket.TopicFromName(testutil.UniqueName("fixed"))
	model := h.model(Config{Topic: &topic, Create: true})

	model, message := h.next(model)
	ready, ok := message.(eventMsg).event.(room.TicketReady)
	if !ok {
		t.Fatalf("first event = %#v, want TicketReady", message)
	}
	decoded, err := ticket.Decode(ready.Ticket)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Topic != topic {
		t.Errorf("ticket topic = %s, want %s", decoded.Topic, topic)
	}
	if model.screen != screenChat {
		t.Errorf("screen = %d, want chat", model.screen)
	}
}

func TestSendEchoesAndPublishes(t *testing.T) {
	transport := &fakeTransport{}
	h := newHarness(t, transport)
	model, _ := createdRoom(t, h)

	model = typeText(t, model, "hello")
	model = press(t, model, tea.KeyEnter)

	last := model.lines[len(model.lines)-1]
	if last.kind != lineSelf || last.author != "you" || last.text != "hello" {
		t.Errorf("last line = %+v, want local echo of hello", last)
	}
	if model.input.Value() != "" {
		t.Errorf("input = %q after submit, want empty", model.input.Value())
	}
	if model.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", model.Pending())
	}
	waitForPublished(t, transport, []string{"hello"})
}

func TestBlankInputIsNotSent(t *testing.T) {
	h := newHarness(t, &fakeTransport{})
	model, _ := createdRoom(t, h)
	lines := len(model.lines)

	model = typeText(t, model, "   ")
	model = press(t, model, tea.KeyEnter)

	if len(model.lines) != lines || model.Pending() != 0 {
		t.Errorf("blank input produced lines=%d pending=%d", len(model.lines)-lines, model.Pending())
	}
}

func TestPendingSendRetriedAfterJoin(t *testing.T) {
	transport := &fakeTransport{gate: make(chan struct{})}
	h := newHarness(t, transport)

	model := typeText(t, h.model(Config{}), sampleTicket())
	model = press(t, model, tea.KeyEnter)
	if model.screen != screenChat {
		t.Fatalf("screen = %d, want chat while joining", model.screen)
	}
	waitForState(t, model.Engine(), room.Starting)

	model = typeText(t, model, "early")
	model = press(t, model, tea.KeyEnter)
	if model.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1 while joining", model.Pending())
	}
	if !strings.Contains(model.View(), "1 unsent") {
		t.Error("status line does not count the unsent message")
	}

	// A poll before the join completes keeps the message.
	model = update(t, model, pollMsg{engine: model.Engine()})
	if model.Pending() != 1 {
		t.Fatalf("Pending = %d after early poll, want 1", model.Pending())
	}

	close(transport.gate)
	waitForState(t, model.Engine(), room.Running)
	model = update(t, model, pollMsg{engine: model.Engine()})

	if model.Pending() != 0 {
		t.Fatalf("Pending = %d after join, want 0", model.Pending())
	}
	if !model.joined {
		t.Error("model not marked joined")
	}
	waitForPublished(t, transport, []string{"early"})
}

func TestMessageReceivedRendered(t *testing.T) {
	h := newHarness(t, &fakeTransport{})
	model, _ := createdRoom(t, h)

	model = update(t, model, eventMsg{
		engine: model.Engine(),
		event:  room.MessageReceived{From: "beta:7000", Text: "hi there"},
	})
	model = update(t, model, eventMsg{
		engine: model.Engine(),
		event:  room.PeerLeft{Peer: "beta:7000"},
	})

	view := model.View()
	for _, want := range []string{"beta:7000:", "hi there", "beta:7000 left"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if model.failed {
		t.Error("PeerLeft marked the session failed")
	}
}

func TestJoinFailureOffersRetry(t *testing.T) {
	transport := &fakeTransport{subscribeErr: gossip.ErrNoPeersReachable}
	h := newHarness(t, transport)

	model := typeText(t, h.model(Config{}), sampleTicket())
	model = press(t, model, tea.KeyEnter)
	model, message := h.next(model)

	sessionError, ok := message.(eventMsg).event.(*room.SessionError)
	if !ok || !errors.Is(sessionError, room.ErrJoinFailed) {
		t.Fatalf("event = %#v, want JoinFailed", message)
	}
	if !model.failed {
		t.Fatal("model not marked failed")
	}
	if model.screen != screenChat {
		t.Errorf("screen = %d, want chat with a retry offer", model.screen)
	}
	if !strings.Contains(model.View(), "retries") {
		t.Errorf("view does not offer a retry:\n%s", model.View())
	}

	first := model.Engine()
	model = press(t, model, tea.KeyCtrlR)
	if h.engineCount() != 2 {
		t.Fatalf("%d engines after retry, want 2", h.engineCount())
	}
	if model.Engine() == first || model.failed {
		t.Error("retry did not start a fresh attempt")
	}
	if model.joinTicket != sampleTicket() {
		t.Errorf("retry joined %q, want the original ticket", model.joinTicket)
	}
}

func TestRetryIgnoredWhileHealthy(t *testing.T) {
	h := newHarness(t, &fakeTransport{})
	model, _ := createdRoom(t, h)

	model = press(t, model, tea.KeyCtrlR)
	if h.engineCount() != 1 {
		t.Errorf("%d engines, want 1", h.engineCount())
	}
}

func TestStaleEngineEventsIgnored(t *testing.T) {
	transport := &fakeTransport{subscribeErr: gossip.ErrNoPeersReachable}
	h := newHarness(t, transport)

	model := typeText(t, h.model(Config{}), sampleTicket())
	model = press(t, model, tea.KeyEnter)
	model, _ = h.next(model)
	stale := model.Engine()
	model = press(t, model, tea.KeyCtrlR)
	lines := len(model.lines)

	model = update(t, model, eventMsg{engine: stale, event: room.MessageReceived{From: "old:1", Text: "late"}})
	model = update(t, model, relayClosedMsg{engine: stale})
	if len(model.lines) != lines {
		t.Errorf("stale engine added %d lines", len(model.lines)-lines)
	}
}

func TestCopyTicketFlashesNotice(t *testing.T) {
	h := newHarness(t, &fakeTransport{})
	model, _ := createdRoom(t, h)

	updated, command := model.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	model = updated.(Model)
	if command == nil {
		t.Fatal("copy returned no command")
	}
	if model.notice != "ticket copied" {
		t.Fatalf("notice = %q, want %q", model.notice, "ticket copied")
	}
	if !strings.Contains(model.View(), "ticket copied") {
		t.Error("view does not show the notice")
	}

	// A fade scheduled for an older notice leaves the current one.
	model = update(t, model, noticeFadeMsg{generation: model.noticeGeneration - 1})
	if model.notice == "" {
		t.Error("stale fade cleared the notice")
	}
	model = update(t, model, noticeFadeMsg{generation: model.noticeGeneration})
	if model.notice != "" {
		t.Errorf("notice = %q after fade, want empty", model.notice)
	}
}

func TestQuitClosesEngine(t *testing.T) {
	h := newHarness(t, &fakeTransport{})
	model, _ := createdRoom(t, h)

	_, command := model.Update(tea.KeyMsg{Type: tea.KeyEscape})
	if command == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := command().(tea.QuitMsg); !ok {
		t.Error("quit command did not produce tea.QuitMsg")
	}
	testutil.RequireClosed(t, model.Engine().Done(), waitTimeout, "engine did not stop after quit")
}

func TestBannerFitsWidth(t *testing.T) {
	h := newHarness(t, &fakeTransport{})
	model, text := createdRoom(t, h)

	model = update(t, model, tea.WindowSizeMsg{Width: 40, Height: 12})
	banner := strings.Split(model.View(), "\n")[0]
	if width := ansi.StringWidth(banner); width > 40 {
		t.Errorf("banner width = %d, want <= 40", width)
	}
	if strings.Contains(banner, text) {
		t.Error("banner shows the full ticket at width 40")
	}
	if !strings.Contains(banner, "copy") {
		t.Errorf("banner lost the copy hint: %q", banner)
	}
	if model.viewport.Height != 12-chromeRows {
		t.Errorf("viewport height = %d, want %d", model.viewport.Height, 12-chromeRows)
	}
}
