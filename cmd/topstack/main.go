// Package main implements the topstack command, a thin front end over the
// TopStack client library: one-off API calls, live event watching and
// configuration checks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/c360/topstack/config"
)

// Build information
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const appName = "topstack"

// errUsage marks command-line mistakes; main exits with status 2 for them.
var errUsage = errors.New("usage")

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		slog.Error("Command failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

// app carries what every command needs
type app struct {
	cli    *CLIConfig
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLIConfig{}
	fs := newGlobalFlags(cli, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	command := fs.Arg(0)
	switch {
	case cli.ShowVersion || command == "version":
		_, _ = fmt.Fprintf(stdout, "%s version %s (%s)\n", appName, Version, BuildTime)
		return nil
	case cli.ShowHelp || command == "help":
		printHelp(stdout, fs)
		return nil
	case command == "":
		printHelp(stderr, fs)
		return fmt.Errorf("%w: no command given", errUsage)
	case command == "endpoints":
		return runEndpoints(stdout)
	}

	a, err := newApp(cli, stdout, stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(a.logger)

	rest := fs.Args()[1:]
	switch command {
	case "validate":
		return a.runValidate()
	case "call":
		return a.runCall(ctx, rest)
	case "watch":
		return a.runWatch(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

// newApp loads configuration and applies the command-line overrides
func newApp(cli *CLIConfig, stdout, stderr io.Writer) (*app, error) {
	loader := config.NewLoader()
	// Flags may still fix the log section, so validate after applying them.
	loader.EnableValidation(false)
	cfg, err := loader.Load(cli.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}
	if cli.MetricsAddr != "" {
		cfg.Metrics.Addr = cli.MetricsAddr
		if cfg.Metrics.Path == "" {
			cfg.Metrics.Path = "/metrics"
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := setupLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	logger.Debug("Configuration loaded", "config_path", cli.ConfigPath, "base_url", cfg.API.BaseURL)

	return &app{cli: cli, cfg: cfg, logger: logger, stdout: stdout, stderr: stderr}, nil
}
