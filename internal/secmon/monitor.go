package secmon

import (
	"sync"
	"time"
)

// Severity ranks a security event.
type Severity uint8

const (
	// SeverityInfo events are recorded but never counted as incidents.
	SeverityInfo Severity = iota
	// SeverityWarn events increment the identifier's incident counter.
	SeverityWarn
	// SeverityCritical events block the identifier immediately.
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event is one observed security occurrence.
type Event struct {
	Time       time.Time
	Type       string
	Identifier string
	Endpoint   string
	Details    string
	Severity   Severity
}

// Blocklist receives identifiers the monitor decides to block permanently.
// The engine wires its own implementation; a nil blocklist disables the
// delegation but not the monitor's internal blocked set.
type Blocklist interface {
	Block(identifier, reason string)
}

// Config tunes the monitor.
type Config struct {
	// MaxEvents bounds the ring buffer; oldest events are evicted first.
	MaxEvents int
	// IncidentThreshold is the warn-event count at which an identifier is
	// blocked. The engine derives it from the configured rate-limit
	// ceiling so the two defenses stay proportionate.
	IncidentThreshold int
}

// Monitor is process-local shared mutable state; all access goes through
// one mutex so concurrent request handlers are safe.
type Monitor struct {
	mu        sync.Mutex
	cfg       Config
	events    []Event
	head      int
	count     int
	incidents map[string]int
	blocked   map[string]struct{}
	blocklist Blocklist
}

// New creates a monitor. Zero or negative MaxEvents defaults to 256;
// zero or negative IncidentThreshold defaults to 10.
func New(cfg Config, blocklist Blocklist) *Monitor {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 256
	}
	if cfg.IncidentThreshold <= 0 {
		cfg.IncidentThreshold = 10
	}
	return &Monitor{
		cfg:       cfg,
		events:    make([]Event, cfg.MaxEvents),
		incidents: make(map[string]int),
		blocked:   make(map[string]struct{}),
		blocklist: blocklist,
	}
}

// LogEvent records the event and applies the blocking policy: critical
// severity blocks at once, and warn severity blocks once the identifier's
// incident count reaches the threshold.
func (m *Monitor) LogEvent(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[m.head] = ev
	m.head = (m.head + 1) % len(m.events)
	if m.count < len(m.events) {
		m.count++
	}

	if ev.Identifier == "" {
		return
	}

	switch ev.Severity {
	case SeverityCritical:
		m.blockLocked(ev.Identifier, ev.Type)
	case SeverityWarn:
		m.incidents[ev.Identifier]++
		if m.incidents[ev.Identifier] >= m.cfg.IncidentThreshold {
			m.blockLocked(ev.Identifier, "incident threshold exceeded")
		}
	}
}

func (m *Monitor) blockLocked(identifier, reason string) {
	if _, already := m.blocked[identifier]; already {
		return
	}
	m.blocked[identifier] = struct{}{}
	if m.blocklist != nil {
		m.blocklist.Block(identifier, reason)
	}
}

// IsBlocked reports whether the monitor has blocked the identifier.
func (m *Monitor) IsBlocked(identifier string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blocked[identifier]
	return ok
}

// Incidents returns the current incident count for an identifier.
func (m *Monitor) Incidents(identifier string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incidents[identifier]
}

// Blocked returns a snapshot of every blocked identifier.
func (m *Monitor) Blocked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.blocked))
	for id := range m.blocked {
		out = append(out, id)
	}
	return out
}

// Events returns a snapshot of the buffered events, oldest first.
func (m *Monitor) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, 0, m.count)
	start := m.head - m.count
	if start < 0 {
		start += len(m.events)
	}
	for i := 0; i < m.count; i++ {
		out = append(out, m.events[(start+i)%len(m.events)])
	}
	return out
}
