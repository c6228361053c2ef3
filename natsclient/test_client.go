package natsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	gonats "github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testImage     = "nats:2.11.7-alpine"
	clientPort    = "4222/tcp"
	monitorPort   = "8222/tcp"
	containerStop = 5 * time.Second
)

// TestClient is a NATS server in a container plus a connected Client, for
// exercising the bus against a real broker.
type TestClient struct {
	Client *Client
	URL    string

	container testcontainers.Container
}

type testSettings struct {
	connectTimeout time.Duration
	startTimeout   time.Duration
	clientOpts     []ClientOption
}

// TestOption configures a TestClient
type TestOption func(*testSettings)

// WithFastStartup shortens the connect and container timeouts
func WithFastStartup() TestOption {
	return func(s *testSettings) {
		s.connectTimeout = 2 * time.Second
		s.startTimeout = 10 * time.Second
	}
}

// WithClientOptions passes extra options to the Client under test
func WithClientOptions(opts ...ClientOption) TestOption {
	return func(s *testSettings) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// NewTestClient starts a broker container, connects a Client to it and
// registers the teardown with t.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()

	s := testSettings{connectTimeout: 5 * time.Second, startTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&s)
	}

	ctx := context.Background()
	container, err := startBroker(ctx, s.startTimeout)
	if err != nil {
		t.Fatalf("start nats container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := brokerURL(ctx, container)
	if err != nil {
		t.Fatalf("resolve nats url: %v", err)
	}

	base := []ClientOption{
		WithTimeout(s.connectTimeout),
		WithMaxReconnects(0),
		WithDrainTimeout(s.connectTimeout),
	}
	client, err := NewClient(url, append(base, s.clientOpts...)...)
	if err != nil {
		t.Fatalf("create nats client: %v", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		t.Fatalf("connect to nats: %v", err)
	}
	// Registered after the container so it runs first.
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	return &TestClient{Client: client, URL: url, container: container}
}

func startBroker(ctx context.Context, startTimeout time.Duration) (testcontainers.Container, error) {
	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testImage,
			ExposedPorts: []string{clientPort, monitorPort},
			Cmd:          []string{"--port", "4222", "--http_port", "8222"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(clientPort),
				wait.ForHTTP("/healthz").WithPort(monitorPort).WithStartupTimeout(startTimeout),
			),
		},
		Started: true,
	})
}

func brokerURL(ctx context.Context, container testcontainers.Container) (string, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := container.MappedPort(ctx, clientPort)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("nats://%s:%s", host, port.Port()), nil
}

// Stop halts the container but leaves the client alone, to simulate a broker outage.
func (tc *TestClient) Stop(ctx context.Context) error {
	timeout := containerStop
	return tc.container.Stop(ctx, &timeout)
}

// IsReady reports whether the client is connected
func (tc *TestClient) IsReady() bool {
	return tc.Client.IsHealthy()
}

// NewConnection opens a second raw connection to the same broker, for
// publishing from outside the client under test.
func (tc *TestClient) NewConnection() (*gonats.Conn, error) {
	return gonats.Connect(tc.URL)
}

// ServerSubscriptions asks the broker's monitoring endpoint how many
// subscriptions match subject.
func (tc *TestClient) ServerSubscriptions(ctx context.Context, subject string) (int, error) {
	host, err := tc.container.Host(ctx)
	if err != nil {
		return 0, err
	}
	port, err := tc.container.MappedPort(ctx, monitorPort)
	if err != nil {
		return 0, err
	}
	endpoint := fmt.Sprintf("http://%s:%s/subsz?subs=1&test=%s", host, port.Port(), url.QueryEscape(subject))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var subsz struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&subsz); err != nil {
		return 0, err
	}
	return subsz.Total, nil
}
