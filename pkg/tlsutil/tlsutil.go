// Package tlsutil turns security.ClientTLSConfig into a crypto/tls client
// configuration shared by the HTTP transport and both bus drivers.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/pkg/security"
)

var versions = map[string]uint16{
	"":    tls.VersionTLS12,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

// MinVersion maps a min_version setting to its crypto/tls constant. An empty
// setting means TLS 1.2.
func MinVersion(v string) (uint16, bool) {
	version, ok := versions[v]
	return version, ok
}

// LoadClientTLSConfig builds the tls.Config for outbound connections. The
// system roots are always trusted and CAFiles extend them.
func LoadClientTLSConfig(cfg security.ClientTLSConfig) (*tls.Config, error) {
	version, ok := MinVersion(cfg.MinVersion)
	if !ok {
		return nil, invalid(fmt.Errorf("unsupported min_version %q", cfg.MinVersion), "parse TLS version")
	}

	roots, err := rootPool(cfg.CAFiles)
	if err != nil {
		return nil, err
	}

	out := &tls.Config{
		MinVersion:         version,
		ServerName:         cfg.ServerName,
		RootCAs:            roots,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in only
	}

	if cfg.MTLS.Enabled {
		cert, err := tls.LoadX509KeyPair(cfg.MTLS.CertFile, cfg.MTLS.KeyFile)
		if err != nil {
			return nil, invalid(err, "load client certificate")
		}
		out.Certificates = []tls.Certificate{cert}
	}
	return out, nil
}

func rootPool(caFiles []string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	for _, file := range caFiles {
		pemData, err := os.ReadFile(file)
		if err != nil {
			return nil, invalid(err, "read CA file "+file)
		}
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, invalid(fmt.Errorf("no PEM certificate found"), "parse CA certificate from "+file)
		}
	}
	return pool, nil
}

func invalid(err error, action string) error {
	return errors.WrapInvalid(err, "tlsutil", "LoadClientTLSConfig", action)
}
