// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/gossip/gossip"
	"github.com/bureau-foundation/gossip/lib/process"
	"github.com/bureau-foundation/gossip/lib/testutil"
	"github.com/bureau-foundation/gossip/lib/ticket"
	"github.com/bureau-foundation/gossip/room"
	"github.com/bureau-foundation/gossip/transport"
)

const waitTimeout = 5 * time.Second

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantUsage bool
	}{
		{name: "no flags", args: nil},
		{name: "create with topic", args: []string{"--create", "--topic", "lobby"}},
		{name: "plain join", args: []string{"--plain", "--join", "abc"}},
		{name: "create and join", args: []string{"--create", "--join", "abc"}, wantUsage: true},
		{name: "topic with join", args: []string{"--topic", "x", "--join", "abc"}, wantUsage: true},
		{name: "plain alone", args: []string{"--plain"}, wantUsage: true},
		{name: "positional argument", args: []string{"extra"}, wantUsage: true},
		{name: "unknown flag", args: []string{"--bogus"}, wantUsage: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := parseArgs(test.args)
			var usage *process.UsageError
			if got := errors.As(err, &usage); got != test.wantUsage {
				t.Errorf("parseArgs(%q) error = %v, want usage error: %v", test.args, err, test.wantUsage)
			}
			if !test.wantUsage && err != nil {
				t.Errorf("parseArgs(%q): %v", test.args, err)
			}
		})
	}
}

func TestParseArgsHelp(t *testing.T) {
	for _, args := range [][]string{{"-h"}, {"--help"}} {
		opts, _, err := parseArgs(args)
		if err != nil || !opts.help {
			t.Errorf("parseArgs(%q) = help %v, error %v; want help", args, opts.help, err)
		}
	}
}

func TestRunHelpAndVersion(t *testing.T) {
	var help bytes.Buffer
	if err := run([]string{"--help"}, nil, &help); err != nil {
		t.Fatalf("run --help: %v", err)
	}
	for _, want := range []string{"--plain", "--join", "--decode", "EXAMPLES"} {
		if !strings.Contains(help.String(), want) {
			t.Errorf("help output missing %q", want)
		}
	}

	var version bytes.Buffer
	if err := run([]string{"--version"}, nil, &version); err != nil {
		t.Fatalf("run --version: %v", err)
	}
	if !strings.HasPrefix(version.String(), "gossip ") {
		t.Errorf("version output = %q", version.String())
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gossip.yaml")
	if err := os.WriteFile(path, []byte("gossip:\n  compression: brotli\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := run([]string{"--config", path, "--plain", "--create"}, strings.NewReader(""), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "gossip.compression") {
		t.Fatalf("run with bad config: %v, want a gossip.compression error", err)
	}
}

func TestDescribeTicket(t *testing.T) {
	topic := ticket.TopicFromName(testutil.UniqueName("describe"))
	text := ticket.Encode(topic, []ticket.PeerAddress{"10.0.0.1:7000", "10.0.0.2:7000"})

	var output bytes.Buffer
	if err := describeTicket(&output, text); err != nil {
		t.Fatalf("describeTicket: %v", err)
	}
	for _, want := range []string{"version    1", "topic      " + topic.String(), "bootstrap  10.0.0.1:7000", "bootstrap  10.0.0.2:7000", "payload    {"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("output missing %q:\n%s", want, output.String())
		}
	}
}

func TestDescribeTicketMalformed(t *testing.T) {
	err := describeTicket(io.Discard, "!!!")
	if !errors.Is(err, ticket.ErrMalformed) {
		t.Fatalf("describeTicket error = %v, want ErrMalformed", err)
	}
}

func TestParseTopic(t *testing.T) {
	named := ticket.TopicFromName("lobby")
	if got := parseTopic("lobby"); got != named {
		t.Errorf("parseTopic(name) = %s, want %s", got, named)
	}
	if got := parseTopic(named.String()); got != named {
		t.Errorf("parseTopic(hex) = %s, want %s", got, named)
	}
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		event room.Event
		want  string
	}{
		{room.TicketReady{Ticket: "abc"}, "ticket abc"},
		{room.MessageReceived{From: "beta:1", Text: "hi"}, "beta:1: hi"},
		{room.PeerJoined{Peer: "beta:1"}, "* beta:1 joined"},
		{room.PeerLeft{Peer: "beta:1"}, "* beta:1 left"},
	}
	for _, test := range tests {
		if got := formatEvent(test.event); got != test.want {
			t.Errorf("formatEvent(%#v) = %q, want %q", test.event, got, test.want)
		}
	}
	failure := &room.SessionError{Kind: room.KindJoinFailed, Err: gossip.ErrNoPeersReachable}
	if got := formatEvent(failure); !strings.HasPrefix(got, "! room session: ") {
		t.Errorf("formatEvent(SessionError) = %q", got)
	}
}

// memoryNode serves a gossip node on network until the test ends.
func memoryNode(t *testing.T, network *transport.MemoryNetwork, address string) *gossip.Node {
	t.Helper()
	listener, err := network.Listen(address)
	if err != nil {
		t.Fatalf("Listen(%s): %v", address, err)
	}
	node, err := gossip.NewNode(gossip.Config{
		Listener:      listener,
		Dialer:        network,
		RetryInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- node.Serve(context.Background()) }()
	t.Cleanup(func() {
		node.Close()
		<-served
	})
	return node
}

func nextEvent(t *testing.T, engine *room.Engine) room.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	event, err := engine.Events().Next(ctx)
	if err != nil {
		t.Fatalf("waiting for event: %v", err)
	}
	return event
}

func TestRunPlainJoinsAndSends(t *testing.T) {
	network := transport.NewMemoryNetwork()
	host := room.NewEngine(room.NewGossipTransport(memoryNode(t, network, "alpha")), room.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		host.Close()
		testutil.RequireClosed(t, host.Done(), waitTimeout, "host engine did not stop")
	})
	host.Start(ctx)
	if err := host.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	ready, ok := nextEvent(t, host).(room.TicketReady)
	if !ok {
		t.Fatal("first host event is not TicketReady")
	}

	guest := room.NewEngine(room.NewGossipTransport(memoryNode(t, network, "beta")), room.Options{})
	stdinReader, stdinWriter := io.Pipe()
	var output bytes.Buffer
	result := make(chan error, 1)
	go func() {
		result <- runPlain(ctx, guest, plainRequest{join: ready.Ticket}, stdinReader, &output)
	}()

	if _, err := io.WriteString(stdinWriter, "hello from a pipe\n"); err != nil {
		t.Fatalf("writing stdin: %v", err)
	}
	for {
		event := nextEvent(t, host)
		if message, ok := event.(room.MessageReceived); ok {
			if message.Text != "hello from a pipe" || message.From != "beta" {
				t.Fatalf("host received %+v", message)
			}
			break
		}
		if failure, ok := event.(*room.SessionError); ok {
			t.Fatalf("host session failed: %v", failure)
		}
	}

	stdinWriter.Close()
	err := testutil.RequireReceive(t, result, waitTimeout, "runPlain did not return after stdin closed")
	if err != nil {
		t.Fatalf("runPlain: %v", err)
	}
	testutil.RequireClosed(t, guest.Done(), waitTimeout, "guest engine did not stop")
}

func TestRunPlainReportsJoinFailure(t *testing.T) {
	network := transport.NewMemoryNetwork()
	engine := room.NewEngine(room.NewGossipTransport(memoryNode(t, network, "alpha")), room.Options{})

	var output bytes.Buffer
	err := runPlain(context.Background(), engine, plainRequest{join: "not a ticket"}, strings.NewReader(""), &output)
	if !errors.Is(err, room.ErrJoinFailed) || !errors.Is(err, ticket.ErrMalformed) {
		t.Fatalf("runPlain error = %v, want JoinFailed wrapping ErrMalformed", err)
	}
	if !strings.HasPrefix(output.String(), "! room session: ") {
		t.Errorf("output = %q, want the printed session error", output.String())
	}
	testutil.RequireClosed(t, engine.Done(), waitTimeout, "engine did not stop")
}
