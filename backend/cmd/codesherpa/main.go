// Command codesherpa serves the code and command execution API.
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
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/fuxialexander/codesherpa/backend/internal/config"
	"github.com/fuxialexander/codesherpa/backend/internal/server"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "codesherpa: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("codesherpa", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "address to listen on")
	fs.StringVar(&cfg.Workspace, "workspace", cfg.Workspace, "directory code runs in and uploads land in")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "maximum duration of one execution")
	fs.StringVar(&cfg.GeoIPDB, "geoip", cfg.GeoIPDB, "MaxMind country database used to annotate access logs")
	interpreter := fs.String("interpreter", "", "interpreter command fed code on stdin, space separated")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn or error")
	logJSON := fs.Bool("log-json", false, "log as JSON")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("unexpected arguments: %q", fs.Args())
	}
	if *interpreter != "" {
		cfg.Interpreter = strings.Fields(*interpreter)
	}
	if err := initLogging(os.Stderr, *logLevel, *logJSON); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			slog.Warn("close", "err", err)
		}
	}()
	return srv.ListenAndServe(ctx, cfg.Addr)
}

// initLogging installs the default slog logger. Colors are only used when
// stderr is a terminal.
func initLogging(f *os.File, level string, asJSON bool) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid -log-level: %w", err)
	}
	var h slog.Handler
	if asJSON {
		h = slog.NewJSONHandler(f, &slog.HandlerOptions{Level: lvl})
	} else {
		var w io.Writer = colorable.NewColorable(f)
		h = tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.TimeOnly,
			NoColor:    !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()),
		})
	}
	slog.SetDefault(slog.New(h))
	return nil
}
