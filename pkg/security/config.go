// Package security provides the TLS settings shared by the HTTP transport and
// the bus connections.
package security

// ClientTLSConfig holds TLS configuration for outbound connections.
// The system CA bundle is always trusted; CAFiles are ADDITIONAL trusted CAs.
// Certificate verification is on unless InsecureSkipVerify is set explicitly.
type ClientTLSConfig struct {
	CAFiles            []string `json:"ca_files,omitempty" yaml:"ca_files,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"` // DEV/TEST ONLY
	MinVersion         string   `json:"min_version,omitempty" yaml:"min_version,omitempty"`                   // "1.2" or "1.3"
	ServerName         string   `json:"server_name,omitempty" yaml:"server_name,omitempty"`

	// mTLS support
	MTLS ClientMTLSConfig `json:"mtls,omitempty" yaml:"mtls,omitempty"`
}

// ClientMTLSConfig holds the client certificate presented to servers that require one
type ClientMTLSConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

// IsZero reports whether no TLS setting deviates from the defaults.
func (c ClientTLSConfig) IsZero() bool {
	return len(c.CAFiles) == 0 &&
		!c.InsecureSkipVerify &&
		c.MinVersion == "" &&
		c.ServerName == "" &&
		!c.MTLS.Enabled
}
