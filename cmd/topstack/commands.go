package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/c360/topstack/api"
	"github.com/c360/topstack/bus"
	"github.com/c360/topstack/client"
	"github.com/c360/topstack/config"
	"github.com/c360/topstack/envelope"
	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/health"
	"github.com/c360/topstack/message"
	"github.com/c360/topstack/metric"
	"github.com/c360/topstack/mqttbus"
	"github.com/c360/topstack/natsclient"
	"github.com/c360/topstack/pkg/retry"
	"github.com/c360/topstack/subject"
	"github.com/c360/topstack/subscription"
)

const closeTimeout = 5 * time.Second

func runEndpoints(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tMETHOD\tPATH")
	for _, r := range api.Routes() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Method, r.Path)
	}
	return tw.Flush()
}

func (a *app) runValidate() error {
	out, err := a.cfg.Redacted().Marshal()
	if err != nil {
		return err
	}
	a.logger.Info("Configuration is valid")
	_, err = a.stdout.Write(out)
	return err
}

func parseFlags(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %w", errUsage, err)
	}
	return false, nil
}

func (a *app) runCall(ctx context.Context, args []string) error {
	var cf callFlags
	fs := newCallFlags(&cf, a.stderr)
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}

	var method, path string
	switch fs.NArg() {
	case 1:
		r, ok := api.Lookup(fs.Arg(0))
		if !ok {
			return fmt.Errorf("%w: unknown endpoint %q, see %s endpoints", errUsage, fs.Arg(0), appName)
		}
		method, path = r.Method, r.Path
	case 2:
		method, path = strings.ToUpper(fs.Arg(0)), fs.Arg(1)
	default:
		return fmt.Errorf("%w: call takes METHOD PATH or an endpoint name", errUsage)
	}
	if cf.Retries > 0 && method != http.MethodGet && !cf.Idempotent {
		return fmt.Errorf("%w: %s calls are retried only with --idempotent", errUsage, method)
	}

	query, err := parseQuery(cf.Query)
	if err != nil {
		return err
	}
	var body any
	if cf.Data != "" {
		if !json.Valid([]byte(cf.Data)) {
			return fmt.Errorf("%w: --data is not valid JSON", errUsage)
		}
		body = json.RawMessage(cf.Data)
	}
	if body != nil && (method == http.MethodGet || method == http.MethodDelete) {
		// GET endpoints take their request as parameters.
		fromData, err := client.QueryFrom(body)
		if err != nil {
			return err
		}
		for k, vs := range fromData {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
		body = nil
	}

	opts, err := a.cfg.ClientOptions(a.logger, nil)
	if err != nil {
		return err
	}
	c, err := client.New(a.cfg.ClientConfig(), opts...)
	if err != nil {
		return err
	}

	rc := retry.DefaultConfig()
	rc.MaxAttempts = cf.Retries + 1
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		a.logger.Warn("Call failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}
	env, err := retry.DoWithResult(ctx, rc, func(ctx context.Context) (*envelope.Envelope, error) {
		return c.Call(ctx, method, path, query, body)
	})
	if err != nil {
		return err
	}
	return writeData(a.stdout, env)
}

func parseQuery(pairs []string) (url.Values, error) {
	query := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: --query %q is not key=value", errUsage, p)
		}
		query.Add(k, v)
	}
	return query, nil
}

func writeData(w io.Writer, env *envelope.Envelope) error {
	if !env.HasData() {
		_, err := fmt.Fprintln(w, "null")
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, env.Data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// watchLine is one printed record
type watchLine struct {
	Class   subject.Class  `json:"class"`
	Subject string         `json:"subject"`
	Record  message.Record `json:"record"`
}

func (a *app) runWatch(ctx context.Context, args []string) error {
	var wf watchFlags
	fs := newWatchFlags(&wf, a.stderr)
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: watch takes one message class: %v", errUsage, subject.Classes)
	}
	class, err := subject.ParseClass(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if a.cfg.Bus.URL == "" {
		return &errors.ConfigError{Field: "bus.url", Reason: "required by watch"}
	}

	project := wf.Project
	if project == "" {
		project = a.cfg.API.ProjectID
	}
	scope := subject.Scope{
		Project:    project,
		Device:     wf.Device,
		DeviceType: wf.DeviceType,
		Point:      wf.Point,
		Gateway:    wf.Gateway,
		Channel:    wf.Channel,
	}

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()
	if a.cfg.Metrics.Addr != "" {
		srv := metric.NewServer(a.cfg.Metrics.Addr, a.cfg.Metrics.Path, registry)
		srv.SetHealthHandler(health.Handler(monitor, appName))
		go func() {
			if err := srv.Start(); err != nil {
				a.logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			_ = srv.Stop(stopCtx)
		}()
		a.logger.Info("Serving metrics", "address", srv.Address())
	}

	b, connected, closeBus, err := a.openBus(ctx, registry)
	if err != nil {
		return err
	}
	monitor.Register("bus", health.Connection("bus", connected))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := closeBus(closeCtx); err != nil {
			a.logger.Warn("Bus close failed", "error", err)
		}
	}()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if wf.For > 0 {
		watchCtx, cancel = context.WithTimeout(watchCtx, wf.For)
		defer cancel()
	}

	opts := append(a.cfg.EngineOptions(a.logger, registry),
		subscription.WithErrorHandler(func(h subscription.Handle, subj string, err error) {
			a.logger.Warn("Message skipped", "subscription", h.ID, "subject", subj, "error", err)
		}))
	engine := subscription.NewEngine(b, opts...)
	monitor.Register("subscriptions", health.Subscriptions("subscriptions", engine.Len, nil))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = engine.Close(closeCtx)
	}()

	var (
		mu    sync.Mutex
		count int
		enc   = json.NewEncoder(a.stdout)
	)
	h, err := engine.Subscribe(watchCtx, scope, class, func(_ context.Context, rec message.Record) error {
		mu.Lock()
		defer mu.Unlock()
		if wf.Limit > 0 && count >= wf.Limit {
			return nil
		}
		count++
		if err := enc.Encode(watchLine{Class: rec.Class(), Subject: rec.Origin(), Record: rec}); err != nil {
			return err
		}
		if wf.Limit > 0 && count >= wf.Limit {
			cancel()
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.logger.Info("Watching", "subject", h.Subject, "class", class, "subscription", h.ID)

	select {
	case <-watchCtx.Done():
	case <-b.Done():
		monitor.Update("bus", health.FromError("bus", errors.ErrConnectionLost))
		return errors.WrapTransient(errors.ErrConnectionLost, "topstack", "watch", "bus connection")
	}

	mu.Lock()
	a.logger.Info("Watch finished", "records", count)
	mu.Unlock()
	return nil
}

// openBus connects the configured driver. Connection attempts are retried
// while they fail transiently. It also returns the connection's liveness probe
// and its close function.
func (a *app) openBus(ctx context.Context, registry *metric.MetricsRegistry) (bus.Bus, func() bool, func(context.Context) error, error) {
	rc := retry.Quick()
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		a.logger.Warn("Bus connect failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	switch a.cfg.Bus.Driver {
	case config.DriverMQTT:
		mc, err := a.cfg.MQTTConfig()
		if err != nil {
			return nil, nil, nil, err
		}
		b, err := mqttbus.New(mc, mqttbus.WithLogger(a.logger), mqttbus.WithMetrics(registry))
		if err != nil {
			return nil, nil, nil, err
		}
		if err := retry.Do(ctx, rc, b.Connect); err != nil {
			return nil, nil, nil, err
		}
		return b, b.IsConnected, b.Close, nil
	default:
		c, err := natsclient.NewClient(a.cfg.Bus.URL, a.cfg.NATSOptions(a.logger, registry)...)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := retry.Do(ctx, rc, c.Connect); err != nil {
			return nil, nil, nil, err
		}
		return c, c.IsHealthy, c.Close, nil
	}
}
