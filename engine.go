package innercircle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aolweb/innercircle/credential"
	"github.com/aolweb/innercircle/internal/rate"
	"github.com/aolweb/innercircle/internal/secmon"
	"github.com/aolweb/innercircle/memberkey"
	"github.com/aolweb/innercircle/tokenstore"
)

// Engine is the access-control core. Build it through [Builder]; its
// methods are safe for concurrent use.
type Engine struct {
	config Config

	tokens tokenstore.Store
	keys   *memberkey.Service

	unlockLimiter rate.Limiter
	verifyLimiter rate.Limiter
	monitor       *secmon.Monitor
	audit         *auditDispatcher
	metrics       *Metrics

	now func() time.Time
}

// Metrics exposes the engine's counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Close stops background workers, draining buffered audit events first.
func (e *Engine) Close() {
	e.audit.Close()
}

// CheckAdminSecret verifies the administrative secret against the
// configured digest. An empty configured digest disables the surface, so
// no presented value ever passes.
func (e *Engine) CheckAdminSecret(raw string) bool {
	if e.config.Security.AdminSecretHash == "" {
		return false
	}
	return credential.Equal(credential.HashHex(raw), e.config.Security.AdminSecretHash)
}

// guardCaller applies the shared request defenses: the monitor's blocklist
// first, then the given rate limiter. The limiter counts the attempt even
// when it refuses it.
func (e *Engine) guardCaller(ctx context.Context, limiter rate.Limiter, identifier, endpoint string) error {
	if identifier == "" {
		return nil
	}

	if e.monitor.IsBlocked(identifier) {
		e.metrics.Inc(MetricAccessDenied)
		return ErrBlocked
	}

	limited, err := limiter.IsRateLimited(ctx, identifier)
	if err != nil || limited {
		e.metrics.Inc(MetricRateLimitHit)
		e.monitor.LogEvent(secmon.Event{
			Time:       e.now(),
			Type:       "rate_limit",
			Identifier: identifier,
			Endpoint:   endpoint,
			Severity:   secmon.SeverityWarn,
		})
		return ErrRateLimited
	}
	return nil
}

// inspectInput runs the payload detectors over a presented value and
// records a warn event per hit. It reports whether anything matched.
func (e *Engine) inspectInput(identifier, endpoint, value string) bool {
	hit := false
	for _, d := range []struct {
		name   string
		detect func(string) bool
	}{
		{"sql_injection", secmon.DetectSQLInjection},
		{"xss", secmon.DetectXSS},
		{"path_traversal", secmon.DetectPathTraversal},
	} {
		if d.detect(value) {
			hit = true
			e.monitor.LogEvent(secmon.Event{
				Time:       e.now(),
				Type:       d.name,
				Identifier: identifier,
				Endpoint:   endpoint,
				Severity:   secmon.SeverityWarn,
			})
		}
	}
	return hit
}

// mapStoreErr folds backend failures into the public error taxonomy.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tokenstore.ErrNotFound), errors.Is(err, memberkey.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, tokenstore.ErrStoreUnavailable), errors.Is(err, memberkey.ErrStoreUnavailable):
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	case errors.Is(err, memberkey.ErrQuotaExceeded):
		return ErrQuotaExceeded
	default:
		return err
	}
}
