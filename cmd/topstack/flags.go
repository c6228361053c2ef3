package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// CLIConfig holds the global command-line configuration
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	MetricsAddr string
	ShowVersion bool
	ShowHelp    bool
}

func newGlobalFlags(cfg *CLIConfig, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	// Everything after the command name belongs to the command.
	fs.SetInterspersed(false)

	fs.StringVarP(&cfg.ConfigPath, "config", "c",
		getEnv("TOPSTACK_CONFIG", ""),
		"Path to a YAML or JSON configuration file (env: TOPSTACK_CONFIG)")
	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("TOPSTACK_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: TOPSTACK_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("TOPSTACK_LOG_FORMAT", ""),
		"Log format: json, text (env: TOPSTACK_LOG_FORMAT)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address while watching")
	fs.BoolVarP(&cfg.ShowVersion, "version", "v", false, "Show version information")
	fs.BoolVarP(&cfg.ShowHelp, "help", "h", false, "Show help information")

	fs.Usage = func() { printHelp(stderr, fs) }
	return fs
}

// callFlags are the options of the call command
type callFlags struct {
	Query      []string
	Data       string
	Retries    int
	Idempotent bool
}

func newCallFlags(cf *callFlags, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("call", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringArrayVarP(&cf.Query, "query", "q", nil, "Query parameter key=value, repeatable")
	fs.StringVarP(&cf.Data, "data", "d", "", "JSON request body for POST calls")
	fs.IntVar(&cf.Retries, "retries", getEnvInt("TOPSTACK_RETRIES", 0),
		"Retry transient failures this many times (env: TOPSTACK_RETRIES)")
	fs.BoolVar(&cf.Idempotent, "idempotent", false, "Allow --retries on POST calls")
	return fs
}

// watchFlags are the options of the watch command
type watchFlags struct {
	Project    string
	Device     string
	DeviceType string
	Point      string
	Gateway    string
	Channel    string
	For        time.Duration
	Limit      int
}

func newWatchFlags(wf *watchFlags, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&wf.Project, "project", "p", "", "Project id, defaults to api.project_id")
	fs.StringVar(&wf.Device, "device", "", "Device id")
	fs.StringVar(&wf.DeviceType, "device-type", "", "Device type id")
	fs.StringVar(&wf.Point, "point", "", "Point id")
	fs.StringVar(&wf.Gateway, "gateway", "", "Gateway id")
	fs.StringVar(&wf.Channel, "channel", "", "Channel id")
	fs.DurationVar(&wf.For, "for", 0, "Stop after this long, 0 to run until interrupted")
	fs.IntVarP(&wf.Limit, "limit", "n", 0, "Stop after this many records, 0 for no limit")
	return fs
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(cfg.LogLevel)) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	return nil
}

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	_, _ = fmt.Fprintf(w, `%s - TopStack platform client

Usage: %s [options] <command> [arguments]

Commands:
  call METHOD PATH   Call an API path and print the response data
  call NAME          Call a catalog endpoint by name (see endpoints)
  watch CLASS        Subscribe to a message class and print records as JSON lines
  endpoints          List the endpoint catalog
  validate           Check the configuration and print it with secrets masked
  version            Show version information

Options:
`, appName, appName)
	fs.SetOutput(w)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Alert levels
  %[1]s -c topstack.yaml call GET /alert/open_api/v1/alert_level

  # Latest value of one point, retried on transient failures
  %[1]s call iot.findLast -d '{"deviceID":"dev1","pointID":"v1"}' --retries 3 --idempotent

  # Device state changes of one device for a minute
  %[1]s watch device-state --device dev1 --for 1m

  # Configuration from the environment only
  export TOPSTACK_BASE_URL=https://topstack.example.com
  export TOPSTACK_API_KEY=...
  export TOPSTACK_PROJECT_ID=project_001
  %[1]s validate

Version: %[2]s
Build: %[3]s
`, appName, Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
