// Package main is the entry point for the imehost terminal keyboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/imehost/internal/keyboard"
	"github.com/dshills/imehost/internal/session"
	"github.com/dshills/imehost/internal/terminal"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	keyboard keyboard.Options
	text     string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()
	// tcell owns the terminal; only a configured log file gets log lines.
	opts.keyboard.Quiet = true

	kb, err := keyboard.New(opts.keyboard)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer kb.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := kb.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start: %v\n", err)
		return 1
	}

	field := session.NewField(session.WithValue(opts.text))
	defer field.Close()

	screen, err := terminal.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
		return 1
	}
	term := terminal.New(screen, kb, field, kb.Logger())
	if err := term.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize terminal: %v\n", err)
		return 1
	}
	defer term.Shutdown()

	term.Focus()
	if err := term.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.keyboard.ConfigPath, "config", "imehost.toml", "Path to configuration file")
	flag.StringVar(&opts.keyboard.ConfigPath, "c", "imehost.toml", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.keyboard.LogLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to the configured level")
	flag.BoolVar(&opts.keyboard.Watch, "watch", false, "Reload the configuration file when it changes")
	flag.StringVar(&opts.text, "text", "", "Initial field text")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "imehost - input method engine host\n\n")
		fmt.Fprintf(os.Stderr, "Usage: imehost [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  imehost                        Type with the default layout\n")
		fmt.Fprintf(os.Stderr, "  imehost -c my.toml -watch      Use and follow my.toml\n")
		fmt.Fprintf(os.Stderr, "  imehost -log-level debug       Log engine switches\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("imehost %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.keyboard.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.keyboard.LogLevel)
		os.Exit(1)
	}

	return opts
}
