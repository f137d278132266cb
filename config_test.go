package innercircle

import (
	"testing"
	"time"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("KEY_EXPIRY_DAYS", "30")
	t.Setenv("MAX_KEYS_PER_MEMBER", "5")
	t.Setenv("SESSION_TTL_DAYS", "7")
	t.Setenv("TOKENSTORE_BACKEND", "distributed-cache")
	t.Setenv("RATE_UNLOCK_MAX", "3")
	t.Setenv("RATE_UNLOCK_WINDOW", "30")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.MemberKey.TTL != 30*24*time.Hour {
		t.Errorf("MemberKey.TTL = %v", cfg.MemberKey.TTL)
	}
	if cfg.MemberKey.MaxActiveKeys != 5 {
		t.Errorf("MaxActiveKeys = %d", cfg.MemberKey.MaxActiveKeys)
	}
	if cfg.Session.TTL != 7*24*time.Hour {
		t.Errorf("Session.TTL = %v", cfg.Session.TTL)
	}
	if cfg.Storage.Backend != BackendDistributedCache {
		t.Errorf("Backend = %s", cfg.Storage.Backend)
	}
	if cfg.RateLimit.UnlockMax != 3 || cfg.RateLimit.UnlockWindow != 30*time.Second {
		t.Errorf("unlock limit = %d/%v", cfg.RateLimit.UnlockMax, cfg.RateLimit.UnlockWindow)
	}
	// Untouched settings keep their defaults.
	if cfg.RateLimit.VerifyMax != 30 {
		t.Errorf("VerifyMax = %d", cfg.RateLimit.VerifyMax)
	}
}

func TestConfigFromEnvRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"KEY_EXPIRY_DAYS":     "ninety",
		"MAX_KEYS_PER_MEMBER": "-1",
		"SESSION_TTL_DAYS":    "0",
		"TOKENSTORE_BACKEND":  "cloud",
		"RATE_UNLOCK_WINDOW":  "0",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			if _, err := ConfigFromEnv(); err == nil {
				t.Fatalf("%s=%q must be rejected", name, value)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	good := defaultConfig()
	if err := good.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero token ttl", func(c *Config) { c.Token.TTL = 0 }},
		{"zero session ttl", func(c *Config) { c.Session.TTL = 0 }},
		{"empty cookie name", func(c *Config) { c.Session.CookieName = "" }},
		{"zero key ttl", func(c *Config) { c.MemberKey.TTL = 0 }},
		{"zero key quota", func(c *Config) { c.MemberKey.MaxActiveKeys = 0 }},
		{"unlock max without window", func(c *Config) { c.RateLimit.UnlockWindow = 0 }},
		{"audit without buffer", func(c *Config) { c.Audit.BufferSize = 0 }},
	}
	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			cfg := defaultConfig()
			m.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}
