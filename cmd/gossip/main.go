// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// gossip is a serverless chat client. Each participant runs a gossip
// node; a room is a gossip topic, and a ticket carries the topic plus
// the addresses of peers already in it.
//
// Without --plain a terminal UI runs: a lobby to create a room or
// paste a ticket, then the chat. With --plain, stdin lines are sent and
// events are printed one per line, for scripts and pipes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gossip/lib/chatui"
	"github.com/bureau-foundation/gossip/lib/config"
	"github.com/bureau-foundation/gossip/lib/process"
	"github.com/bureau-foundation/gossip/lib/ticket"
	"github.com/bureau-foundation/gossip/lib/version"
	"github.com/bureau-foundation/gossip/room"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		process.Fatal(err)
	}
}

// options is the parsed command line.
type options struct {
	configPath  string
	create      bool
	join        string
	topic       string
	plain       bool
	decode      string
	logFile     string
	showVersion bool
	help        bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("gossip", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&opts.configPath, "config", "", "config file (YAML, or JSONC with a .json/.jsonc extension; default $"+config.EnvironmentVariable+")")
	flagSet.BoolVar(&opts.create, "create", false, "create a room immediately")
	flagSet.StringVar(&opts.join, "join", "", "join the room this ticket describes")
	flagSet.StringVar(&opts.topic, "topic", "", "topic for --create: a 64-digit hex topic ID, or any name")
	flagSet.BoolVar(&opts.plain, "plain", false, "line mode: send stdin lines, print events to stdout")
	flagSet.StringVar(&opts.decode, "decode", "", "print what a ticket contains and exit")
	flagSet.StringVar(&opts.logFile, "log-file", "", "write JSON logs to this file")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")
	return flagSet
}

// parseArgs parses and cross-checks the command line.
func parseArgs(args []string) (options, *pflag.FlagSet, error) {
	var opts options
	flagSet := newFlagSet(&opts)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.help = true
			return opts, flagSet, nil
		}
		return opts, flagSet, &process.UsageError{Err: err}
	}
	if flagSet.NArg() > 0 {
		return opts, flagSet, process.Usagef("unexpected argument: %s", flagSet.Arg(0))
	}
	if opts.create && opts.join != "" {
		return opts, flagSet, process.Usagef("--create and --join cannot be combined")
	}
	if opts.topic != "" && opts.join != "" {
		return opts, flagSet, process.Usagef("--topic applies to created rooms; the ticket names the topic when joining")
	}
	if opts.plain && !opts.create && opts.join == "" {
		return opts, flagSet, process.Usagef("--plain needs --create or --join")
	}
	return opts, flagSet, nil
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	opts, flagSet, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.help {
		printHelp(stdout, flagSet)
		return nil
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "gossip %s\n", version.Full())
		return nil
	}
	if opts.decode != "" {
		return describeTicket(stdout, opts.decode)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logFile != "" {
		cfg.Log.File = opts.logFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	var topic *ticket.TopicID
	if opts.topic != "" {
		parsed := parseTopic(opts.topic)
		topic = &parsed
	}

	logger, closeLog, err := newLogger(cfg.Log, !opts.plain)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := startNode(ctx, cfg, logger)
	if err != nil {
		return err
	}
	serveResult := make(chan error, 1)
	go func() { serveResult <- node.Serve(ctx) }()
	defer func() {
		node.Close()
		if err := <-serveResult; err != nil {
			logger.Warn("node stopped", "error", err)
		}
	}()
	logger.Info("node up", "address", node.Address(), "transport", cfg.Node.Transport)

	transport := room.NewGossipTransport(node)
	newEngine := func() *room.Engine {
		return room.NewEngine(transport, room.Options{
			CommandCapacity: cfg.Session.CommandCapacity,
			JoinTimeout:     cfg.Session.JoinTimeout,
			DrainTimeout:    cfg.Session.DrainTimeout,
			Logger:          logger,
		})
	}
	shutdownWait := cfg.Session.DrainTimeout + time.Second

	if opts.plain {
		request := plainRequest{join: opts.join, topic: topic}
		return runPlain(ctx, newEngine(), request, stdin, stdout)
	}
	return runInteractive(ctx, chatui.Config{
		NewEngine: newEngine,
		Topic:     topic,
		Create:    opts.create,
		Join:      opts.join,
	}, shutdownWait)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// parseTopic accepts a hex topic ID, or derives one from any other text.
func parseTopic(text string) ticket.TopicID {
	if topic, err := ticket.ParseTopicID(text); err == nil {
		return topic
	}
	return ticket.TopicFromName(text)
}

// runInteractive runs the terminal UI until the user quits or ctx ends,
// then gives the last engine up to wait to flush queued sends.
func runInteractive(ctx context.Context, uiConfig chatui.Config, wait time.Duration) error {
	program := tea.NewProgram(chatui.NewModel(ctx, uiConfig), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	final, err := program.Run()
	if model, ok := final.(chatui.Model); ok && model.Engine() != nil {
		engine := model.Engine()
		engine.Close()
		waitContext, cancel := context.WithTimeout(context.Background(), wait)
		defer cancel()
		engine.Wait(waitContext)
	}
	if err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `gossip - serverless chat rooms over a gossip mesh

USAGE
    gossip [flags]

Creating a room prints a ticket. Anyone holding the ticket can join;
every participant relays messages, so the room lives as long as anyone
is in it.

FLAGS
%s
EXAMPLES
    # Open the terminal UI
    gossip

    # Create a room and chat from a pipe
    gossip --plain --create

    # Join from a script
    echo hello | gossip --plain --join <ticket>

    # Inspect a ticket
    gossip --decode <ticket>
`, flagSet.FlagUsages())
}
