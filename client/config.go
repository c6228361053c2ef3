package client

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/pkg/security"
)

// DefaultTimeout bounds a call when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Authentication header names
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderProjectID = "x-ProjectID"
	HeaderAppID     = "X-App-ID"
	HeaderAppSecret = "X-App-Secret"
)

// Config holds the connection settings of a Client. Exactly one credential pair
// must be set: APIKey with ProjectID, or AppID with AppSecret.
type Config struct {
	// BaseURL is the absolute http or https address of the platform
	BaseURL string

	APIKey    string
	ProjectID string

	AppID     string
	AppSecret string

	// Timeout bounds each call end to end; zero means DefaultTimeout
	Timeout time.Duration

	// TLS configures certificate verification. Verification stays on unless
	// TLS.InsecureSkipVerify is set explicitly.
	TLS security.ClientTLSConfig
}

// Validate checks the configuration without touching the network.
func (c Config) Validate() error {
	_, err := c.parseBaseURL()
	if err != nil {
		return err
	}
	if _, err := c.authHeaders(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return &errors.ConfigError{Field: "Timeout", Reason: "must not be negative"}
	}
	return nil
}

func (c Config) parseBaseURL() (*url.URL, error) {
	if strings.TrimSpace(c.BaseURL) == "" {
		return nil, &errors.ConfigError{Field: "BaseURL", Reason: "required"}
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, &errors.ConfigError{Field: "BaseURL", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &errors.ConfigError{Field: "BaseURL", Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, &errors.ConfigError{Field: "BaseURL", Reason: "host is required"}
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, &errors.ConfigError{Field: "BaseURL", Reason: "must not carry a query or fragment"}
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u, nil
}

// authHeaders derives the fixed header set from the credential pair.
func (c Config) authHeaders() (http.Header, error) {
	keyMode := c.APIKey != "" || c.ProjectID != ""
	appMode := c.AppID != "" || c.AppSecret != ""

	switch {
	case keyMode && appMode:
		return nil, &errors.ConfigError{Field: "credentials", Reason: "set either APIKey/ProjectID or AppID/AppSecret, not both"}
	case !keyMode && !appMode:
		return nil, &errors.ConfigError{Field: "credentials", Reason: "APIKey/ProjectID or AppID/AppSecret required"}
	}

	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")

	if keyMode {
		if c.APIKey == "" {
			return nil, &errors.ConfigError{Field: "APIKey", Reason: "required with ProjectID"}
		}
		if c.ProjectID == "" {
			return nil, &errors.ConfigError{Field: "ProjectID", Reason: "required with APIKey"}
		}
		// The platform expects this exact casing; bypass canonicalization
		h[HeaderAPIKey] = []string{c.APIKey}
		h[HeaderProjectID] = []string{c.ProjectID}
		return h, nil
	}

	if c.AppID == "" {
		return nil, &errors.ConfigError{Field: "AppID", Reason: "required with AppSecret"}
	}
	if c.AppSecret == "" {
		return nil, &errors.ConfigError{Field: "AppSecret", Reason: "required with AppID"}
	}
	h.Set(HeaderAppID, c.AppID)
	h.Set(HeaderAppSecret, c.AppSecret)
	return h, nil
}
