package health

import (
	"regexp"
	"strings"
	"time"
)

// Health states
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Pre-compiled patterns for error message sanitization
var (
	urlRegex         = regexp.MustCompile(`(?i)\b(?:https?|nats|tls|tcp|ssl|mqtts?|wss?)://[^\s]+`)
	unixPathRegex    = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	windowsPathRegex = regexp.MustCompile(`[A-Z]:\\[^:\s]+`)
	ipAddrRegex      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex        = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex  = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health of one part, or of a whole system with its parts in
// SubStatuses.
type Status struct {
	Component   string         `json:"component"`
	Healthy     bool           `json:"healthy"`
	Status      string         `json:"status"`
	Message     string         `json:"message"`
	Timestamp   time.Time      `json:"timestamp"`
	Details     map[string]any `json:"details,omitempty"`
	SubStatuses []Status       `json:"sub_statuses,omitempty"`
}

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a healthy status
func NewHealthy(component, message string) Status {
	return newStatus(component, StateHealthy, message)
}

// NewDegraded creates a degraded status
func NewDegraded(component, message string) Status {
	return newStatus(component, StateDegraded, message)
}

// NewUnhealthy creates an unhealthy status
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StateUnhealthy, message)
}

// FromError is unhealthy with err's sanitized text, or healthy when err is nil.
func FromError(component string, err error) Status {
	if err == nil {
		return NewHealthy(component, "ok")
	}
	return NewUnhealthy(component, sanitizeErrorMessage(err.Error()))
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool { return s.Status == StateHealthy }

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool { return s.Status == StateDegraded }

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool { return s.Status == StateUnhealthy }

// WithDetail returns a copy carrying key=value in Details
func (s Status) WithDetail(key string, value any) Status {
	details := make(map[string]any, len(s.Details)+1)
	for k, v := range s.Details {
		details[k] = v
	}
	details[key] = value
	s.Details = details
	return s
}

// Aggregate folds parts into one status named component. The worst part
// decides: any unhealthy part makes the whole unhealthy, otherwise any
// degraded part makes it degraded.
func Aggregate(component string, parts []Status) Status {
	if len(parts) == 0 {
		return NewHealthy(component, "nothing to check")
	}

	var unhealthy, degraded []string
	for _, p := range parts {
		switch {
		case p.IsUnhealthy():
			unhealthy = append(unhealthy, p.Component)
		case p.IsDegraded():
			degraded = append(degraded, p.Component)
		}
	}

	var out Status
	switch {
	case len(unhealthy) > 0:
		out = NewUnhealthy(component, "unhealthy: "+strings.Join(unhealthy, ", "))
	case len(degraded) > 0:
		out = NewDegraded(component, "degraded: "+strings.Join(degraded, ", "))
	default:
		out = NewHealthy(component, "all parts healthy")
	}
	out.SubStatuses = append([]Status(nil), parts...)
	return out
}

// sanitizeErrorMessage masks URLs, paths, addresses, ports and credential
// pairs. URLs go first since they contain paths and ports.
func sanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	s := urlRegex.ReplaceAllString(msg, "[URL]")
	s = unixPathRegex.ReplaceAllString(s, "[PATH]")
	s = windowsPathRegex.ReplaceAllString(s, "[PATH]")
	s = ipAddrRegex.ReplaceAllString(s, "[IP]")
	s = portRegex.ReplaceAllString(s, "[PORT]")
	return credentialRegex.ReplaceAllString(s, "[REDACTED]")
}
