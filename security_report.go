package innercircle

import (
	"sort"
	"time"

	"github.com/aolweb/innercircle/internal/secmon"
)

// SecurityPosture is the engine's static defensive configuration, spelled
// out so an operator can read the effective settings without the config
// source at hand.
type SecurityPosture struct {
	StorageBackend    string
	TokenTTL          time.Duration
	SessionTTL        time.Duration
	KeyTTL            time.Duration
	MaxActiveKeys     int
	RateLimits        RateLimitConfig
	IncidentThreshold int
	AuditEnabled      bool
}

// SecurityReport is a point-in-time view of the engine's defenses, for
// operator dashboards and the administrative surface.
type SecurityReport struct {
	GeneratedAt        time.Time
	Posture            SecurityPosture
	Events             []secmon.Event
	BlockedIdentifiers []string
	AuditDropped       uint64
	Metrics            MetricsSnapshot
}

// SecurityReport assembles the current report. Snapshots only; generating
// a report never perturbs the defenses it describes.
func (e *Engine) SecurityReport() SecurityReport {
	blocked := e.monitor.Blocked()
	sort.Strings(blocked)

	return SecurityReport{
		GeneratedAt: e.now(),
		Posture: SecurityPosture{
			StorageBackend:    e.config.Storage.Backend.String(),
			TokenTTL:          e.config.Token.TTL,
			SessionTTL:        e.config.Session.TTL,
			KeyTTL:            e.config.MemberKey.TTL,
			MaxActiveKeys:     e.config.MemberKey.MaxActiveKeys,
			RateLimits:        e.config.RateLimit,
			IncidentThreshold: e.config.Security.IncidentThreshold,
			AuditEnabled:      e.config.Audit.Enabled,
		},
		Events:             e.monitor.Events(),
		BlockedIdentifiers: blocked,
		AuditDropped:       e.audit.Dropped(),
		Metrics:            e.metrics.Snapshot(),
	}
}
