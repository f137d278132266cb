package innercircle

import (
	"context"
	"errors"
	"time"

	"github.com/aolweb/innercircle/credential"
	"github.com/aolweb/innercircle/tokenstore"
)

// SessionGrant is a live access session as seen by callers.
type SessionGrant struct {
	SessionID string
	Tier      Tier
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// UnlockRequest presents a one-time token for redemption. IP identifies
// the caller for rate limiting and monitoring.
type UnlockRequest struct {
	Token string
	IP    string
}

// UnlockResult is the discriminated outcome of an unlock. Session is
// non-nil exactly when Status is [tokenstore.Consumed].
type UnlockResult struct {
	Status  tokenstore.ConsumeStatus
	Session *SessionGrant
}

// Unlock redeems a one-time token and, for the winning call, mints an
// access session at the token's tier. Losing outcomes come back in the
// result status with a nil error; the error return carries only caller
// defenses (blocked, rate limited, malformed input) and storage faults.
func (e *Engine) Unlock(ctx context.Context, req UnlockRequest) (*UnlockResult, error) {
	if err := e.guardCaller(ctx, e.unlockLimiter, req.IP, "unlock"); err != nil {
		return nil, err
	}
	if e.inspectInput(req.IP, "unlock", req.Token) {
		return nil, ErrInvalidFormat
	}

	tok, status, err := e.consumeToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if status != tokenstore.Consumed {
		return &UnlockResult{Status: status}, nil
	}

	// The consume transition hands back the stamped record; minting the
	// session from it avoids re-reading a record whose storage TTL can
	// fire the moment the token is spent.
	grant, err := e.createSession(ctx, Tier(tok.Tier), tok.Subject)
	if err != nil {
		return nil, err
	}
	return &UnlockResult{Status: status, Session: grant}, nil
}

// CreateSession mints a session directly, bypassing token redemption. The
// administrative surface uses it to grant access out of band.
func (e *Engine) CreateSession(ctx context.Context, tier Tier, subject string) (*SessionGrant, error) {
	return e.createSession(ctx, tier, subject)
}

func (e *Engine) createSession(ctx context.Context, tier Tier, subject string) (*SessionGrant, error) {
	id, err := credential.NewSessionID()
	if err != nil {
		return nil, err
	}

	now := e.now()
	sess := &tokenstore.Session{
		SessionID: id,
		Tier:      uint8(tier),
		Subject:   subject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(e.config.Session.TTL).Unix(),
	}
	if err := e.tokens.UpsertSession(ctx, sess); err != nil {
		return nil, mapStoreErr(err)
	}

	e.metrics.Inc(MetricSessionCreated)
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: now,
		EventType: "session.create",
		Subject:   subject,
		SessionID: id,
		Tier:      tier.String(),
		Success:   true,
	})

	return &SessionGrant{
		SessionID: id,
		Tier:      tier,
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}, nil
}

// Session returns the live session, or ErrNotFound once it is revoked or
// expired. Lazy invalidation means no sweep is needed for correctness.
func (e *Engine) Session(ctx context.Context, sessionID string) (*SessionGrant, error) {
	sess, err := e.tokens.GetSession(ctx, sessionID, e.now())
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return &SessionGrant{
		SessionID: sess.SessionID,
		Tier:      Tier(sess.Tier),
		Subject:   sess.Subject,
		IssuedAt:  time.Unix(sess.IssuedAt, 0),
		ExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}, nil
}

// RevokeSession invalidates a session immediately. Missing sessions are a
// no-op so revocation is idempotent.
func (e *Engine) RevokeSession(ctx context.Context, sessionID string) error {
	if err := e.tokens.RevokeSession(ctx, sessionID); err != nil {
		return mapStoreErr(err)
	}
	e.metrics.Inc(MetricSessionRevoked)
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: "session.revoke",
		SessionID: sessionID,
		Success:   true,
	})
	return nil
}

// ResolveSession turns a session identifier into a credential for
// authorization. A dead session resolves to KindNone rather than an error
// so callers can fold it straight into a Decision.
func (e *Engine) ResolveSession(ctx context.Context, sessionID string) (ResolvedCredential, error) {
	if sessionID == "" {
		return ResolvedCredential{}, nil
	}
	grant, err := e.Session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ResolvedCredential{}, nil
		}
		return ResolvedCredential{}, err
	}
	return ResolvedCredential{
		Kind:      KindSession,
		Tier:      grant.Tier,
		Subject:   grant.Subject,
		SessionID: grant.SessionID,
		ExpiresAt: grant.ExpiresAt,
	}, nil
}
