// Package main provides the browsersync CLI application.
//
// browsersync watches directory trees and pushes every file change to
// connected browsers over WebSocket or Server-Sent Events so pages can
// reload themselves during development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// version is set during build time.
var version = "dev"

// errUsage marks a command line that could not be parsed. The flag set has
// already printed the reason.
var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

// run executes the main application logic.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("browsersync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to configuration file")
	showVersion := fs.Bool("version", false, "show version information")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	if *showVersion {
		fmt.Fprintf(stdout, "browsersync %s\n", version)
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return showUsage(stdout)
	}

	command := rest[0]
	cmdArgs := rest[1:]

	switch command {
	case "serve":
		cmd, err := parseServeCommand(*configPath, cmdArgs, stderr)
		if err != nil {
			return ignoreHelp(err)
		}
		cmd.stdout, cmd.stderr = stdout, stderr
		return cmd.Execute(ctx)
	case "watch":
		cmd, err := parseWatchCommand(*configPath, cmdArgs, stderr)
		if err != nil {
			return ignoreHelp(err)
		}
		cmd.stdout, cmd.stderr = stdout, stderr
		return cmd.Execute(ctx)
	case "runs":
		cmd, err := parseRunsCommand(*configPath, cmdArgs, stderr)
		if err != nil {
			return ignoreHelp(err)
		}
		cmd.stdout = stdout
		return cmd.Execute()
	case "config":
		cmd := &configCommand{
			configPath: *configPath,
			stdout:     stdout,
			stdin:      os.Stdin,
		}
		return cmd.Execute(cmdArgs)
	case "help":
		return showUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// ignoreHelp treats an explicit -h as success.
func ignoreHelp(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

// showUsage displays usage information.
func showUsage(w io.Writer) error {
	usage := `browsersync - push file changes to the browser

Usage:
  browsersync [flags] <command> [command flags]

Commands:
  serve       Watch directories and stream changes over WebSocket and SSE
  watch       Watch directories and print changes to the console
  runs        Show the history of watcher runs
  config      Configuration management (show, path, reset)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Serve Command Flags:
  -addr       Listen address (default from config: 127.0.0.1:3001)
  -topic      Publish topic and WebSocket path
  -dirs       Comma-separated directories (overrides config)
  -follow     Watch directories created after startup
  -detach     Keep running when a watched directory disappears
  -quiet      Do not print events to the console

Watch Command Flags:
  -format     Output format (auto, table, json, simple)
  -timestamps Prefix events with the time they were seen
  -follow     Watch directories created after startup
  -detach     Keep running when a watched directory disappears

Runs Command Flags:
  -limit      Number of runs to show (default: 20, 0 for all)
  -format     Output format (table, json, simple)
  -prune      Keep only the newest N runs

Environment:
  BROWSERSYNC_CONFIG        Configuration file
  BROWSERSYNC_DIRECTORIES   Comma-separated directories
  BROWSERSYNC_ENABLED       true or false
  BROWSERSYNC_ADDR          Listen address
  BROWSERSYNC_TOPIC         Publish topic
  BROWSERSYNC_DB            Run history database ("off" disables it)
  BROWSERSYNC_LOG_LEVEL     Log level

Examples:
  # Serve changes under two directories
  browsersync serve -dirs src/main/resources,src/main/webapp

  # Print changes as JSON lines
  browsersync watch -format json ./public

  # Show the last five runs
  browsersync runs -limit 5

  # Connect from the page
  new WebSocket("ws://127.0.0.1:3001/wsdevtools/filesync")
`
	_, err := fmt.Fprint(w, usage)
	return err
}
