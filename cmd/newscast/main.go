// Package main is the newscast command-line client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/newscast/internal/config"
)

var version = "dev"

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"register": {"register --email E --password P [--name N]", cmdRegister},
		"login":    {"login --email E --password P", cmdLogin},
		"logout":   {"logout", cmdLogout},
		"whoami":   {"whoami", cmdWhoami},
		"generate": {"generate --mode adhoc|urls|profile|preferences [source flags] [--watch]", cmdGenerate},
		"status":   {"status <digest-id> [--watch]", cmdStatus},
		"history":  {"history [--page N] [--limit N]", cmdHistory},
		"rename":   {"rename <episode-id> <name>", cmdRename},
		"prefs":    {"prefs | prefs set [--topics ...] [--language L] [--style S]", cmdPrefs},
		"profiles": {"profiles", cmdProfiles},
		"feed":     {"feed [--out FILE] [--title T]", cmdFeed},
	}
}

var errUsage = errors.New("usage")

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "newscast: loading .env:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "newscast:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(stderr)
		return errUsage
	}
	if args[0] == "version" || args[0] == "--version" {
		fmt.Fprintf(stdout, "newscast %s\n", version)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(cfg, newLogger(cfg.Log.Level, stderr), stdout, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd.run(ctx, a, args[1:])
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: newscast <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}
