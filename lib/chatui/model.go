// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/gossip/lib/ticket"
	"github.com/bureau-foundation/gossip/room"
)

// pollInterval paces pending-send retries and the wait for a join to
// complete.
const pollInterval = 200 * time.Millisecond

// Layout rows outside the message viewport: banner, status, input, help.
const chromeRows = 4

const (
	defaultWidth  = 80
	defaultHeight = 24
)

type screen int

const (
	screenLobby screen = iota
	screenChat
)

type lineKind int

const (
	lineSelf lineKind = iota
	linePeer
	lineNotice
	lineError
)

type logLine struct {
	kind   lineKind
	author string
	text   string
}

// eventMsg carries one event from an engine's relay. The engine is
// recorded so events from an engine the model already replaced are
// dropped.
type eventMsg struct {
	engine *room.Engine
	event  room.Event
}

// relayClosedMsg reports that an engine's relay is closed and drained.
type relayClosedMsg struct {
	engine *room.Engine
}

type pollMsg struct {
	engine *room.Engine
}

// Config configures a Model.
type Config struct {
	// NewEngine returns an unstarted engine. The model calls it for every
	// room attempt: create, join, and each retry. Required.
	NewEngine func() *room.Engine

	// Topic is the topic created rooms use. Nil generates a fresh one.
	Topic *ticket.TopicID

	// Create skips the lobby and creates a room immediately.
	Create bool

	// Join skips the lobby and joins this ticket. A malformed ticket
	// lands in the lobby with the error shown.
	Join string

	// Nil selects DefaultTheme and DefaultKeyMap.
	Theme *Theme
	Keys  *KeyMap
}

// Model is the bubbletea model for the chat client.
type Model struct {
	ctx       context.Context
	newEngine func() *room.Engine
	theme     Theme
	keys      KeyMap

	screen     screen
	lobbyError string

	engine *room.Engine
	topic  *ticket.TopicID

	// joinTicket is the ticket being joined; empty for created rooms.
	joinTicket string

	// ticket is the room ticket shown in the banner.
	ticket string

	joined bool
	failed bool

	// pending holds messages echoed locally but not yet accepted by the
	// engine, oldest first.
	pending []string
	polling bool

	lines    []logLine
	input    textinput.Model
	viewport viewport.Model

	notice           string
	noticeGeneration int

	width  int
	height int
}

// NewModel returns a model bound to ctx, which scopes every engine the
// model starts. With config.Create or config.Join set, the first room
// attempt is already under way when NewModel returns.
func NewModel(ctx context.Context, config Config) Model {
	theme := DefaultTheme
	if config.Theme != nil {
		theme = *config.Theme
	}
	keys := DefaultKeyMap
	if config.Keys != nil {
		keys = *config.Keys
	}

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "paste a room ticket"
	input.Focus()

	model := Model{
		ctx:       ctx,
		newEngine: config.NewEngine,
		theme:     theme,
		keys:      keys,
		topic:     config.Topic,
		input:     input,
		viewport:  viewport.New(defaultWidth, defaultHeight-chromeRows),
		width:     defaultWidth,
		height:    defaultHeight,
	}
	model = model.resize(defaultWidth, defaultHeight)

	switch {
	case config.Join != "":
		model, _ = model.join(config.Join)
	case config.Create:
		model, _ = model.create()
	}
	return model
}

// Init implements tea.Model. It listens on the engine NewModel started,
// if any.
func (model Model) Init() tea.Cmd {
	commands := []tea.Cmd{textinput.Blink}
	if model.engine != nil {
		commands = append(commands,
			listenForEvent(model.ctx, model.engine),
			pollAfter(model.engine))
	}
	return tea.Batch(commands...)
}

// Engine returns the engine of the current room attempt, or nil in the
// lobby before any attempt.
func (model Model) Engine() *room.Engine { return model.engine }

// Pending returns the number of messages not yet accepted by the engine.
func (model Model) Pending() int { return len(model.pending) }

// listenForEvent waits for the next event on engine's relay.
func listenForEvent(ctx context.Context, engine *room.Engine) tea.Cmd {
	return func() tea.Msg {
		event, err := engine.Events().Next(ctx)
		if err != nil {
			return relayClosedMsg{engine: engine}
		}
		return eventMsg{engine: engine, event: event}
	}
}

func pollAfter(engine *room.Engine) tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollMsg{engine: engine}
	})
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		return model.resize(message.Width, message.Height), nil

	case tea.KeyMsg:
		if key.Matches(message, model.keys.Quit) {
			if model.engine != nil {
				model.engine.Close()
			}
			return model, tea.Quit
		}
		if model.screen == screenLobby {
			return model.handleLobbyKey(message)
		}
		return model.handleChatKey(message)

	case eventMsg:
		if message.engine != model.engine {
			return model, nil
		}
		model = model.handleEvent(message.event)
		return model, listenForEvent(model.ctx, model.engine)

	case relayClosedMsg:
		if message.engine == model.engine && !model.failed {
			model = model.appendLine(logLine{kind: lineNotice, text: "session ended"})
		}
		return model, nil

	case pollMsg:
		if message.engine != model.engine {
			return model, nil
		}
		model.polling = false
		return model.handlePoll()

	case noticeFadeMsg:
		if message.generation == model.noticeGeneration {
			model.notice = ""
		}
		return model, nil
	}

	var command tea.Cmd
	model.input, command = model.input.Update(message)
	return model, command
}

func (model Model) handleLobbyKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Create):
		return model.create()
	case key.Matches(message, model.keys.Join):
		text := strings.TrimSpace(model.input.Value())
		if text == "" {
			model.lobbyError = "paste a ticket first, or press " + model.keys.Create.Help().Key + " to create a room"
			return model, nil
		}
		return model.join(text)
	}
	var command tea.Cmd
	model.input, command = model.input.Update(message)
	return model, command
}

func (model Model) handleChatKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Submit):
		return model.submit()
	case key.Matches(message, model.keys.CopyTicket):
		if model.ticket == "" {
			return model, nil
		}
		model, fade := model.flashNotice("ticket copied")
		return model, tea.Batch(copyToClipboard(model.ticket), fade)
	case key.Matches(message, model.keys.Retry):
		if !model.failed {
			return model, nil
		}
		return model.retry()
	case key.Matches(message, model.keys.PageUp):
		model.viewport.LineUp(max(model.viewport.Height-1, 1))
		return model, nil
	case key.Matches(message, model.keys.PageDown):
		model.viewport.LineDown(max(model.viewport.Height-1, 1))
		return model, nil
	}
	var command tea.Cmd
	model.input, command = model.input.Update(message)
	return model, command
}

// create starts a new engine and asks it to open a room.
func (model Model) create() (Model, tea.Cmd) {
	model, command := model.startEngine()
	if err := model.engine.Open(model.topic); err != nil {
		model = model.appendLine(logLine{kind: lineError, text: err.Error()})
		model.failed = true
	}
	model.joinTicket = ""
	model = model.appendLine(logLine{kind: lineNotice, text: "creating room"})
	return model, command
}

// join validates text and starts a new engine joining it. A malformed
// ticket never reaches an engine: the lobby shows the error and keeps
// the text for editing.
func (model Model) join(text string) (Model, tea.Cmd) {
	decoded, err := ticket.Decode(text)
	if err != nil {
		model.screen = screenLobby
		model.lobbyError = err.Error()
		model.input.SetValue(text)
		return model, nil
	}
	model, command := model.startEngine()
	if err := model.engine.Join(text); err != nil {
		model = model.appendLine(logLine{kind: lineError, text: err.Error()})
		model.failed = true
	}
	model.joinTicket = text
	model.ticket = text
	model = model.appendLine(logLine{
		kind: lineNotice,
		text: fmt.Sprintf("joining room %s via %d peer(s)", decoded.Topic.Short(), len(decoded.Bootstrap)),
	})
	return model, command
}

// retry replaces a failed engine with a fresh one for the same room.
// Pending messages carry over.
func (model Model) retry() (Model, tea.Cmd) {
	if model.joinTicket != "" {
		return model.join(model.joinTicket)
	}
	if decoded, err := ticket.Decode(model.ticket); err == nil {
		topic := decoded.Topic
		model.topic = &topic
	}
	return model.create()
}

// startEngine closes the current engine, if any, and starts a new one.
func (model Model) startEngine() (Model, tea.Cmd) {
	if model.engine != nil {
		model.engine.Close()
	}
	model.engine = model.newEngine()
	model.engine.Start(model.ctx)

	model.screen = screenChat
	model.lobbyError = ""
	model.joined = false
	model.failed = false
	model.polling = true
	model.input.Reset()
	model.input.Placeholder = "type a message"
	return model, tea.Batch(listenForEvent(model.ctx, model.engine), pollAfter(model.engine))
}

// submit echoes the input line and queues it for sending.
func (model Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(model.input.Value())
	if text == "" {
		return model, nil
	}
	model.input.Reset()
	model = model.appendLine(logLine{kind: lineSelf, author: "you", text: text})
	model.pending = append(model.pending, text)
	return model.flush()
}

// flush hands pending messages to the engine in order, stopping at the
// first one it does not take yet.
func (model Model) flush() (Model, tea.Cmd) {
	for len(model.pending) > 0 {
		err := model.engine.Send(model.pending[0])
		if err == nil {
			model.pending = model.pending[1:]
			continue
		}
		if model.retryable(err) {
			return model.schedulePoll()
		}
		if errors.Is(err, room.ErrCommandQueueClosed) || errors.Is(err, room.ErrNotActive) {
			// The session is over; messages wait for a retry.
			return model, nil
		}
		model = model.appendLine(logLine{kind: lineError, text: "not sent: " + err.Error()})
		model.pending = model.pending[1:]
	}
	return model, nil
}

// retryable reports whether a Send failure is worth retrying on the
// current engine: the queue is full, or the session is still starting.
func (model Model) retryable(err error) bool {
	if errors.Is(err, room.ErrCommandQueueFull) {
		return true
	}
	if errors.Is(err, room.ErrNotActive) {
		state := model.engine.State()
		return state == room.Idle || state == room.Starting
	}
	return false
}

func (model Model) schedulePoll() (Model, tea.Cmd) {
	if model.polling {
		return model, nil
	}
	model.polling = true
	return model, pollAfter(model.engine)
}

func (model Model) handlePoll() (tea.Model, tea.Cmd) {
	state := model.engine.State()
	if state == room.Running && !model.joined {
		model.joined = true
		if model.joinTicket != "" {
			model = model.appendLine(logLine{kind: lineNotice, text: "joined the room"})
		}
	}
	if len(model.pending) > 0 && state == room.Running {
		return model.flush()
	}
	if state == room.Idle || state == room.Starting {
		return model.schedulePoll()
	}
	return model, nil
}

func (model Model) handleEvent(event room.Event) Model {
	switch event := event.(type) {
	case room.TicketReady:
		model.ticket = event.Ticket
		model.joined = true
		return model.appendLine(logLine{
			kind: lineNotice,
			text: "room open; share the ticket (" + model.keys.CopyTicket.Help().Key + " copies it)",
		})

	case room.MessageReceived:
		return model.appendLine(logLine{kind: linePeer, author: shortAddress(event.From), text: event.Text})

	case room.PeerJoined:
		return model.appendLine(logLine{kind: lineNotice, text: shortAddress(event.Peer) + " joined"})

	case room.PeerLeft:
		return model.appendLine(logLine{kind: lineNotice, text: shortAddress(event.Peer) + " left"})

	case *room.SessionError:
		return model.handleSessionError(event)
	}
	return model
}

func (model Model) handleSessionError(err *room.SessionError) Model {
	if err.Kind == room.KindJoinFailed && errors.Is(err, ticket.ErrMalformed) {
		model.screen = screenLobby
		model.lobbyError = err.Error()
		model.input.SetValue(model.joinTicket)
		return model
	}
	if !err.Terminal() {
		return model.appendLine(logLine{kind: lineError, text: err.Error()})
	}
	model.failed = true
	text := err.Error()
	switch err.Kind {
	case room.KindJoinFailed:
		text = "could not join: " + text
	case room.KindTransportUnavailable:
		text = "connection lost: " + text
	}
	text += " (" + model.keys.Retry.Help().Key + " retries)"
	return model.appendLine(logLine{kind: lineError, text: text})
}

func (model Model) flashNotice(text string) (Model, tea.Cmd) {
	model.noticeGeneration++
	model.notice = text
	return model, fadeNotice(model.noticeGeneration)
}

func (model Model) appendLine(line logLine) Model {
	model.lines = append(model.lines, line)
	model.viewport.SetContent(model.renderLines())
	model.viewport.GotoBottom()
	return model
}

func (model Model) resize(width, height int) Model {
	model.width = width
	model.height = height
	model.viewport.Width = width
	model.viewport.Height = max(height-chromeRows, 1)
	model.input.Width = max(width-len(model.input.Prompt)-1, 1)
	model.viewport.SetContent(model.renderLines())
	model.viewport.GotoBottom()
	return model
}

// shortAddress trims long peer addresses for display.
func shortAddress(address ticket.PeerAddress) string {
	return ansi.Truncate(string(address), 24, "…")
}

// View implements tea.Model.
func (model Model) View() string {
	if model.screen == screenLobby {
		return model.renderLobby()
	}
	return model.renderChat()
}

func (model Model) renderLobby() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.NormalText)
	textStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	errorStyle := lipgloss.NewStyle().Foreground(model.theme.Error)
	helpStyle := lipgloss.NewStyle().Foreground(model.theme.HelpText)

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("gossip chat"))
	builder.WriteString("\n\n")
	builder.WriteString(textStyle.Width(model.width).Render(
		"Paste a room ticket and press " + model.keys.Join.Help().Key +
			" to join, or press " + model.keys.Create.Help().Key + " to create a room."))
	builder.WriteString("\n\n")
	builder.WriteString(model.input.View())
	builder.WriteString("\n")
	if model.lobbyError != "" {
		builder.WriteString(errorStyle.Width(model.width).Render(model.lobbyError))
		builder.WriteString("\n")
	}
	builder.WriteString("\n")
	builder.WriteString(helpStyle.Render(model.help(model.keys.Join, model.keys.Create, model.keys.Quit)))
	return builder.String()
}

func (model Model) renderChat() string {
	bannerStyle := lipgloss.NewStyle().
		Foreground(model.theme.BannerForeground).
		Background(model.theme.BannerBackground).
		Width(model.width)
	statusStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	noticeStyle := lipgloss.NewStyle().Foreground(model.theme.Notice)
	helpStyle := lipgloss.NewStyle().Foreground(model.theme.HelpText)

	sections := []string{
		bannerStyle.Render(model.bannerText()),
		model.viewport.View(),
	}

	status := statusStyle.Render(model.statusText())
	if model.notice != "" {
		status = noticeStyle.Render(model.notice)
	}
	sections = append(sections, status, model.input.View())
	sections = append(sections, helpStyle.Render(model.help(
		model.keys.Submit, model.keys.CopyTicket, model.keys.Retry, model.keys.Quit)))
	return strings.Join(sections, "\n")
}

// bannerText is the ticket line, truncated to the terminal width with
// the copy hint kept visible.
func (model Model) bannerText() string {
	if model.ticket == "" {
		return " waiting for ticket…"
	}
	label := " ticket: "
	hint := "  [" + model.keys.CopyTicket.Help().Key + " copy]"
	space := max(model.width-ansi.StringWidth(label)-ansi.StringWidth(hint), 8)
	return label + ansi.Truncate(model.ticket, space, "…") + hint
}

func (model Model) statusText() string {
	var status string
	switch {
	case model.failed:
		status = "disconnected"
	case model.engine == nil:
		status = "idle"
	case !model.joined:
		if model.joinTicket != "" {
			status = "joining…"
		} else {
			status = "creating…"
		}
	default:
		status = "connected"
	}
	if len(model.pending) > 0 {
		status += fmt.Sprintf(" · %d unsent", len(model.pending))
	}
	return status
}

func (model Model) renderLines() string {
	selfStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.SelfName)
	peerStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.PeerName)
	textStyle := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	noticeStyle := lipgloss.NewStyle().Italic(true).Foreground(model.theme.Notice)
	errorStyle := lipgloss.NewStyle().Foreground(model.theme.Error)

	rendered := make([]string, 0, len(model.lines))
	for _, line := range model.lines {
		var text string
		switch line.kind {
		case lineSelf:
			text = selfStyle.Render(line.author+":") + " " + textStyle.Render(line.text)
		case linePeer:
			text = peerStyle.Render(line.author+":") + " " + textStyle.Render(line.text)
		case lineNotice:
			text = noticeStyle.Render("* " + line.text)
		case lineError:
			text = errorStyle.Render("! " + line.text)
		}
		rendered = append(rendered, lipgloss.NewStyle().Width(max(model.width, 1)).Render(text))
	}
	return strings.Join(rendered, "\n")
}

func (model Model) help(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return strings.Join(parts, " · ")
}
