package health

import (
	"sort"
	"sync"
	"time"
)

// Check computes the current status of one part. Checks must be cheap and
// must not block.
type Check func() Status

// Monitor tracks the health of named parts. Parts either have a registered
// Check evaluated on every Report, or a status pushed with Update.
type Monitor struct {
	mu       sync.RWMutex
	checks   map[string]Check
	statuses map[string]Status
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{
		checks:   make(map[string]Check),
		statuses: make(map[string]Status),
	}
}

// Register adds or replaces the check for name
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
	m.checks[name] = check
}

// Update records a pushed status for name, replacing any check
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	delete(m.checks, name)
	m.statuses[name] = status
}

// Remove stops tracking name
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checks, name)
	delete(m.statuses, name)
}

// Get returns the current status of name
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	check, isCheck := m.checks[name]
	status, isStatus := m.statuses[name]
	m.mu.RUnlock()

	if isCheck {
		return run(name, check), true
	}
	return status, isStatus
}

// Count returns the number of tracked parts
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checks) + len(m.statuses)
}

// Report evaluates every part and aggregates them under system, parts
// ordered by name.
func (m *Monitor) Report(system string) Status {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for name, c := range m.checks {
		checks[name] = c
	}
	parts := make([]Status, 0, len(m.checks)+len(m.statuses))
	for _, s := range m.statuses {
		parts = append(parts, s)
	}
	m.mu.RUnlock()

	// Checks run unlocked so a check may use the monitor itself.
	for name, c := range checks {
		parts = append(parts, run(name, c))
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Component < parts[j].Component })
	return Aggregate(system, parts)
}

func run(name string, check Check) (s Status) {
	defer func() {
		if r := recover(); r != nil {
			s = NewUnhealthy(name, "health check panicked")
		}
	}()
	s = check()
	s.Component = name
	return s
}
