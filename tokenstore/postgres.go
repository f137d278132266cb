package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the relational backend. One-time tokens and sessions live in
// two tables; the consume transition is a single guarded UPDATE so the
// database serializes concurrent redemptions.
//
// Expected schema:
//
//	CREATE TABLE one_time_tokens (
//	    token_hash  text PRIMARY KEY,
//	    tier        smallint NOT NULL,
//	    subject     text NOT NULL,
//	    issued_at   timestamptz NOT NULL,
//	    expires_at  timestamptz NOT NULL,
//	    consumed_at timestamptz,
//	    revoked     boolean NOT NULL DEFAULT false
//	);
//
//	CREATE TABLE access_sessions (
//	    session_id text PRIMARY KEY,
//	    tier       smallint NOT NULL,
//	    subject    text NOT NULL,
//	    issued_at  timestamptz NOT NULL,
//	    expires_at timestamptz NOT NULL,
//	    revoked    boolean NOT NULL DEFAULT false
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed store.
func NewPostgres(pool *pgxpool.Pool) (*Postgres, error) {
	if pool == nil {
		return nil, errors.New("tokenstore: nil pgx pool")
	}
	return &Postgres{pool: pool}, nil
}

// PutOneTimeToken inserts the token record.
func (p *Postgres) PutOneTimeToken(ctx context.Context, tok *OneTimeToken) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO one_time_tokens (token_hash, tier, subject, issued_at, expires_at, consumed_at, revoked)
		 VALUES ($1, $2, $3, $4, $5, NULL, $6)
		 ON CONFLICT (token_hash) DO NOTHING`,
		tok.TokenHash,
		int16(tok.Tier),
		tok.Subject,
		time.Unix(tok.IssuedAt, 0).UTC(),
		time.Unix(tok.ExpiresAt, 0).UTC(),
		tok.Revoked,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// GetOneTimeToken fetches the record, applying lazy expiry.
func (p *Postgres) GetOneTimeToken(ctx context.Context, tokenHash string) (*OneTimeToken, error) {
	tok, err := p.scanToken(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if tok.ConsumedAt == 0 && !tok.Revoked && time.Now().Unix() >= tok.ExpiresAt {
		return nil, ErrNotFound
	}
	return tok, nil
}

// ConsumeOneTimeToken issues one guarded UPDATE that returns the stamped
// row, so the winner leaves with the record in hand. When no row matches, a
// follow-up read classifies the failure; the classification read never
// races the transition because a token that lost the UPDATE can only be in
// a terminal state.
func (p *Postgres) ConsumeOneTimeToken(ctx context.Context, tokenHash string, now time.Time) (*OneTimeToken, ConsumeStatus, error) {
	var (
		tier      int16
		subject   string
		issuedAt  time.Time
		expiresAt time.Time
	)
	err := p.pool.QueryRow(ctx,
		`UPDATE one_time_tokens
		    SET consumed_at = $2
		  WHERE token_hash = $1
		    AND consumed_at IS NULL
		    AND NOT revoked
		    AND expires_at > $2
		 RETURNING tier, subject, issued_at, expires_at`,
		tokenHash,
		now.UTC(),
	).Scan(&tier, &subject, &issuedAt, &expiresAt)
	if err == nil {
		return &OneTimeToken{
			TokenHash:  tokenHash,
			Tier:       uint8(tier),
			Subject:    subject,
			IssuedAt:   issuedAt.Unix(),
			ExpiresAt:  expiresAt.Unix(),
			ConsumedAt: now.Unix(),
		}, Consumed, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	tok, err := p.scanToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NotFound, nil
		}
		return nil, NotFound, err
	}
	switch {
	case tok.Revoked:
		return nil, Revoked, nil
	case tok.ConsumedAt != 0:
		return nil, AlreadyConsumed, nil
	default:
		return nil, Expired, nil
	}
}

// RevokeOneTimeToken marks the token revoked; idempotent.
func (p *Postgres) RevokeOneTimeToken(ctx context.Context, tokenHash string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE one_time_tokens SET revoked = true WHERE token_hash = $1`,
		tokenHash,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// GetSession returns the live session; the WHERE clause is the Live
// predicate expressed in SQL.
func (p *Postgres) GetSession(ctx context.Context, sessionID string, now time.Time) (*Session, error) {
	var (
		tier      int16
		subject   string
		issuedAt  time.Time
		expiresAt time.Time
	)
	err := p.pool.QueryRow(ctx,
		`SELECT tier, subject, issued_at, expires_at
		   FROM access_sessions
		  WHERE session_id = $1
		    AND NOT revoked
		    AND expires_at > $2`,
		sessionID,
		now.UTC(),
	).Scan(&tier, &subject, &issuedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &Session{
		SessionID: sessionID,
		Tier:      uint8(tier),
		Subject:   subject,
		IssuedAt:  issuedAt.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}, nil
}

// UpsertSession inserts or overwrites the session row.
func (p *Postgres) UpsertSession(ctx context.Context, sess *Session) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO access_sessions (session_id, tier, subject, issued_at, expires_at, revoked)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id) DO UPDATE
		    SET tier = EXCLUDED.tier,
		        subject = EXCLUDED.subject,
		        issued_at = EXCLUDED.issued_at,
		        expires_at = EXCLUDED.expires_at,
		        revoked = EXCLUDED.revoked`,
		sess.SessionID,
		int16(sess.Tier),
		sess.Subject,
		time.Unix(sess.IssuedAt, 0).UTC(),
		time.Unix(sess.ExpiresAt, 0).UTC(),
		sess.Revoked,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeSession marks the row revoked; idempotent, missing row is a no-op.
func (p *Postgres) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE access_sessions SET revoked = true WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteExpired removes token and session rows past expiry. Storage
// hygiene only; reads never depend on it.
func (p *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64

	tag, err := p.pool.Exec(ctx,
		`DELETE FROM one_time_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	removed += tag.RowsAffected()

	tag, err = p.pool.Exec(ctx,
		`DELETE FROM access_sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return removed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	removed += tag.RowsAffected()

	return removed, nil
}

func (p *Postgres) scanToken(ctx context.Context, tokenHash string) (*OneTimeToken, error) {
	var (
		tier       int16
		subject    string
		issuedAt   time.Time
		expiresAt  time.Time
		consumedAt *time.Time
		revoked    bool
	)
	err := p.pool.QueryRow(ctx,
		`SELECT tier, subject, issued_at, expires_at, consumed_at, revoked
		   FROM one_time_tokens
		  WHERE token_hash = $1`,
		tokenHash,
	).Scan(&tier, &subject, &issuedAt, &expiresAt, &consumedAt, &revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	tok := &OneTimeToken{
		TokenHash: tokenHash,
		Tier:      uint8(tier),
		Subject:   subject,
		IssuedAt:  issuedAt.Unix(),
		ExpiresAt: expiresAt.Unix(),
		Revoked:   revoked,
	}
	if consumedAt != nil {
		tok.ConsumedAt = consumedAt.Unix()
	}
	return tok, nil
}
