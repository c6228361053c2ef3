package api

import (
	"net/url"
	"strings"

	"github.com/c360/topstack/errors"
)

// PageOptions authenticate a DataV page link. Token is required; the
// credentials are optional.
type PageOptions struct {
	Token    string
	Username string
	Password string
}

// PageURL returns {base}/datav/page/{pageID}?token=... with the optional
// username and password appended.
func PageURL(base, pageID string, opts PageOptions) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &errors.ConfigError{Field: "base", Reason: "must be an absolute http or https address"}
	}
	if err := required("pageID", pageID); err != nil {
		return "", err
	}
	if err := required("token", opts.Token); err != nil {
		return "", err
	}

	u = u.JoinPath("datav", "page", pageID)
	q := url.Values{}
	q.Set("token", opts.Token)
	if opts.Username != "" {
		q.Set("username", opts.Username)
	}
	if opts.Password != "" {
		q.Set("password", opts.Password)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
