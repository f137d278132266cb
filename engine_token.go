package innercircle

import (
	"context"
	"time"

	"github.com/aolweb/innercircle/credential"
	"github.com/aolweb/innercircle/tokenstore"
)

// TokenIssue is the input to IssueOneTimeToken.
type TokenIssue struct {
	// Tier is the access level a successful unlock grants.
	Tier Tier
	// Subject identifies what the token unlocks, typically a content path.
	Subject string
	// TTL overrides the configured redemption window when positive.
	TTL time.Duration
}

// IssuedToken is handed back exactly once. RawToken is never persisted.
type IssuedToken struct {
	RawToken  string
	TokenHash string
	Tier      Tier
	Subject   string
	ExpiresAt time.Time
}

// TokenInfo is the non-secret state of a token, for support tooling.
type TokenInfo struct {
	Tier      Tier
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
	Revoked   bool
}

// IssueOneTimeToken mints a single-use unlock token at the given tier. The
// store receives only the token's SHA-256 digest.
func (e *Engine) IssueOneTimeToken(ctx context.Context, p TokenIssue) (*IssuedToken, error) {
	ttl := p.TTL
	if ttl <= 0 {
		ttl = e.config.Token.TTL
	}

	raw, err := credential.NewOneTimeToken()
	if err != nil {
		return nil, err
	}

	now := e.now()
	tok := &tokenstore.OneTimeToken{
		TokenHash: credential.HashHex(raw),
		Tier:      uint8(p.Tier),
		Subject:   p.Subject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	if err := e.tokens.PutOneTimeToken(ctx, tok); err != nil {
		return nil, mapStoreErr(err)
	}

	e.metrics.Inc(MetricTokenIssued)
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: now,
		EventType: "token.issue",
		Subject:   p.Subject,
		TokenHash: tok.TokenHash,
		Tier:      p.Tier.String(),
		Success:   true,
	})

	return &IssuedToken{
		RawToken:  raw,
		TokenHash: tok.TokenHash,
		Tier:      p.Tier,
		Subject:   p.Subject,
		ExpiresAt: time.Unix(tok.ExpiresAt, 0),
	}, nil
}

// PeekOneTimeToken inspects a token without consuming it.
func (e *Engine) PeekOneTimeToken(ctx context.Context, rawToken string) (*TokenInfo, error) {
	tok, err := e.tokens.GetOneTimeToken(ctx, credential.HashHex(rawToken))
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return &TokenInfo{
		Tier:      Tier(tok.Tier),
		Subject:   tok.Subject,
		IssuedAt:  time.Unix(tok.IssuedAt, 0),
		ExpiresAt: time.Unix(tok.ExpiresAt, 0),
		Consumed:  tok.ConsumedAt != 0,
		Revoked:   tok.Revoked,
	}, nil
}

// ConsumeOneTimeToken attempts to spend the token. The status discriminates
// every outcome; the error return is reserved for storage faults, on which
// callers must fail closed.
func (e *Engine) ConsumeOneTimeToken(ctx context.Context, rawToken string) (tokenstore.ConsumeStatus, error) {
	_, status, err := e.consumeToken(ctx, rawToken)
	return status, err
}

// consumeToken spends the token and hands the winner the stamped record, so
// Unlock can mint a session without re-reading a record whose TTL may have
// fired right after the transition.
func (e *Engine) consumeToken(ctx context.Context, rawToken string) (*tokenstore.OneTimeToken, tokenstore.ConsumeStatus, error) {
	now := e.now()
	hash := credential.HashHex(rawToken)

	tok, status, err := e.tokens.ConsumeOneTimeToken(ctx, hash, now)
	if err != nil {
		return nil, status, mapStoreErr(err)
	}

	if status == tokenstore.Consumed {
		e.metrics.Inc(MetricTokenConsumed)
	} else {
		e.metrics.Inc(MetricTokenConsumeFailed)
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: now,
		EventType: "token.consume",
		TokenHash: hash,
		Success:   status == tokenstore.Consumed,
		Metadata:  map[string]string{"status": status.String()},
	})
	return tok, status, nil
}

// RevokeOneTimeToken invalidates an unconsumed token. Revoking a missing
// or already revoked token is a no-op.
func (e *Engine) RevokeOneTimeToken(ctx context.Context, rawToken string) error {
	hash := credential.HashHex(rawToken)
	if err := e.tokens.RevokeOneTimeToken(ctx, hash); err != nil {
		return mapStoreErr(err)
	}
	e.metrics.Inc(MetricTokenRevoked)
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: "token.revoke",
		TokenHash: hash,
		Success:   true,
	})
	return nil
}
