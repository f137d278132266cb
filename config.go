package innercircle

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// StorageBackend selects where one-time tokens and sessions live.
type StorageBackend uint8

const (
	// BackendMemory is the process-local store. Development and tests.
	BackendMemory StorageBackend = iota
	// BackendDistributedCache is the Redis-backed store.
	BackendDistributedCache
	// BackendRelational is the PostgreSQL-backed store.
	BackendRelational
)

func (b StorageBackend) String() string {
	switch b {
	case BackendMemory:
		return "memory"
	case BackendDistributedCache:
		return "distributed-cache"
	case BackendRelational:
		return "relational"
	default:
		return "unknown"
	}
}

// ParseStorageBackend maps a backend name to its value.
func ParseStorageBackend(s string) (StorageBackend, error) {
	switch s {
	case "memory":
		return BackendMemory, nil
	case "distributed-cache":
		return BackendDistributedCache, nil
	case "relational":
		return BackendRelational, nil
	default:
		return BackendMemory, fmt.Errorf("unknown storage backend %q", s)
	}
}

// Config assembles every tunable of the engine. Configure once at startup
// and treat as immutable afterwards; Build clones it.
type Config struct {
	Token     TokenConfig
	Session   SessionConfig
	MemberKey MemberKeyConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Storage   StorageConfig
}

// TokenConfig tunes one-time unlock tokens.
type TokenConfig struct {
	// TTL is the redemption window of a freshly issued token.
	TTL time.Duration
}

// SessionConfig tunes access sessions and their cookie.
type SessionConfig struct {
	TTL          time.Duration
	CookieName   string
	CookieDomain string
	// SecureCookies marks the cookie Secure; enable everywhere TLS
	// terminates in front of the site.
	SecureCookies bool
}

// MemberKeyConfig tunes the member key lifecycle.
type MemberKeyConfig struct {
	TTL                time.Duration
	MaxActiveKeys      int
	SuffixLength       int
	EmailHashPrefixLen int
}

// RateLimitConfig carries the two request budgets the engine enforces,
// both keyed by caller IP.
type RateLimitConfig struct {
	UnlockMax    int
	UnlockWindow time.Duration
	VerifyMax    int
	VerifyWindow time.Duration
}

// SecurityConfig tunes the monitor and the administrative surface.
type SecurityConfig struct {
	MaxEvents         int
	IncidentThreshold int
	// AdminSecretHash is the lowercase SHA-256 hex of the admin secret.
	// Empty disables the administrative surface entirely.
	AdminSecretHash string
}

// AuditConfig tunes the asynchronous audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking request paths when the
	// buffer is full. Dropped counts are visible in the security report.
	DropIfFull bool
}

// MetricsConfig tunes the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// StorageConfig selects and namespaces the token store backend.
type StorageConfig struct {
	Backend StorageBackend
	// RedisPrefix namespaces keys when the backend is the distributed
	// cache.
	RedisPrefix string
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL: 15 * time.Minute,
		},
		Session: SessionConfig{
			TTL:        30 * 24 * time.Hour,
			CookieName: "aol_access",
		},
		MemberKey: MemberKeyConfig{
			TTL:                90 * 24 * time.Hour,
			MaxActiveKeys:      3,
			SuffixLength:       8,
			EmailHashPrefixLen: 12,
		},
		RateLimit: RateLimitConfig{
			UnlockMax:    10,
			UnlockWindow: time.Minute,
			VerifyMax:    30,
			VerifyWindow: time.Minute,
		},
		Security: SecurityConfig{
			MaxEvents:         256,
			IncidentThreshold: 10,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Storage: StorageConfig{
			Backend:     BackendMemory,
			RedisPrefix: "icl",
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}

// Validate rejects configurations that cannot produce a working engine.
func (c *Config) Validate() error {
	if c.Token.TTL <= 0 {
		return errors.New("Token.TTL must be positive")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session.TTL must be positive")
	}
	if c.Session.CookieName == "" {
		return errors.New("Session.CookieName must be set")
	}
	if c.MemberKey.TTL <= 0 {
		return errors.New("MemberKey.TTL must be positive")
	}
	if c.MemberKey.MaxActiveKeys <= 0 {
		return errors.New("MemberKey.MaxActiveKeys must be positive")
	}
	if c.RateLimit.UnlockMax > 0 && c.RateLimit.UnlockWindow <= 0 {
		return errors.New("RateLimit.UnlockWindow must be positive when UnlockMax is set")
	}
	if c.RateLimit.VerifyMax > 0 && c.RateLimit.VerifyWindow <= 0 {
		return errors.New("RateLimit.VerifyWindow must be positive when VerifyMax is set")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when auditing is enabled")
	}
	return nil
}

// ConfigFromEnv starts from the defaults and applies the deployment
// environment variables:
//
//	KEY_EXPIRY_DAYS       member key lifetime in days
//	MAX_KEYS_PER_MEMBER   active key quota per member
//	SESSION_TTL_DAYS      access session lifetime in days
//	TOKENSTORE_BACKEND    memory | distributed-cache | relational
//	RATE_UNLOCK_MAX       unlock attempts allowed per window
//	RATE_UNLOCK_WINDOW    unlock window in seconds
//	RATE_VERIFY_MAX       key verifications allowed per window
//	RATE_VERIFY_WINDOW    verify window in seconds
//
// Unset variables keep their defaults; malformed values are an error so a
// typo cannot silently weaken a limit.
func ConfigFromEnv() (Config, error) {
	cfg := defaultConfig()

	if v := os.Getenv("KEY_EXPIRY_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return Config{}, fmt.Errorf("KEY_EXPIRY_DAYS: invalid value %q", v)
		}
		cfg.MemberKey.TTL = time.Duration(days) * 24 * time.Hour
	}
	if v := os.Getenv("MAX_KEYS_PER_MEMBER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("MAX_KEYS_PER_MEMBER: invalid value %q", v)
		}
		cfg.MemberKey.MaxActiveKeys = n
	}
	if v := os.Getenv("SESSION_TTL_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return Config{}, fmt.Errorf("SESSION_TTL_DAYS: invalid value %q", v)
		}
		cfg.Session.TTL = time.Duration(days) * 24 * time.Hour
	}
	if v := os.Getenv("TOKENSTORE_BACKEND"); v != "" {
		backend, err := ParseStorageBackend(v)
		if err != nil {
			return Config{}, fmt.Errorf("TOKENSTORE_BACKEND: %v", err)
		}
		cfg.Storage.Backend = backend
	}

	for _, pair := range []struct {
		maxVar, windowVar string
		max               *int
		window            *time.Duration
	}{
		{"RATE_UNLOCK_MAX", "RATE_UNLOCK_WINDOW", &cfg.RateLimit.UnlockMax, &cfg.RateLimit.UnlockWindow},
		{"RATE_VERIFY_MAX", "RATE_VERIFY_WINDOW", &cfg.RateLimit.VerifyMax, &cfg.RateLimit.VerifyWindow},
	} {
		if v := os.Getenv(pair.maxVar); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return Config{}, fmt.Errorf("%s: invalid value %q", pair.maxVar, v)
			}
			*pair.max = n
		}
		if v := os.Getenv(pair.windowVar); v != "" {
			secs, err := strconv.Atoi(v)
			if err != nil || secs <= 0 {
				return Config{}, fmt.Errorf("%s: invalid value %q", pair.windowVar, v)
			}
			*pair.window = time.Duration(secs) * time.Second
		}
	}

	return cfg, nil
}
