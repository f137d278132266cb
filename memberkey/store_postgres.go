package memberkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists members and keys in PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE members (
//	    id                text PRIMARY KEY,
//	    email_hash        text NOT NULL UNIQUE,
//	    email_hash_prefix text NOT NULL,
//	    name              text NOT NULL DEFAULT '',
//	    last_ip           text NOT NULL DEFAULT '',
//	    metadata          jsonb,
//	    created_at        timestamptz NOT NULL,
//	    last_seen_at      timestamptz NOT NULL
//	);
//	CREATE INDEX members_email_hash_prefix_idx ON members (email_hash_prefix);
//
//	CREATE TABLE member_keys (
//	    id            text PRIMARY KEY,
//	    member_id     text NOT NULL REFERENCES members (id),
//	    key_hash      text NOT NULL UNIQUE,
//	    key_suffix    text NOT NULL,
//	    status        smallint NOT NULL,
//	    created_at    timestamptz NOT NULL,
//	    expires_at    timestamptz NOT NULL,
//	    total_unlocks bigint NOT NULL DEFAULT 0,
//	    last_used_at  timestamptz
//	);
//	CREATE INDEX member_keys_member_status_idx ON member_keys (member_id, status);
//
// status stores the [Status] enum ordinal.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, ErrInvalidInput
	}
	return &PostgresStore{pool: pool}, nil
}

// IssueKey runs the issuance as one transaction. The member upsert comes
// first because it takes the row lock that serializes concurrent issuances
// for the same member; the quota count and key insert then run under that
// lock, and any failure rolls the whole unit back.
func (s *PostgresStore) IssueKey(ctx context.Context, in IssueRecord) (string, error) {
	if in.Member.EmailHash == "" || in.Key.KeyHash == "" {
		return "", ErrInvalidInput
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var memberID string
	err = tx.QueryRow(ctx,
		`INSERT INTO members (id, email_hash, email_hash_prefix, name, last_ip, metadata, created_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 ON CONFLICT (email_hash) DO UPDATE
		    SET last_seen_at = EXCLUDED.last_seen_at,
		        last_ip = CASE WHEN EXCLUDED.last_ip <> '' THEN EXCLUDED.last_ip ELSE members.last_ip END,
		        name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE members.name END
		 RETURNING id`,
		in.Member.MemberID,
		in.Member.EmailHash,
		in.Member.EmailHashPrefix,
		in.Member.Name,
		in.Member.IP,
		in.Member.Metadata,
		in.Member.Now.UTC(),
	).Scan(&memberID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if in.MaxActiveKeys > 0 {
		var active int
		err = tx.QueryRow(ctx,
			`SELECT count(*) FROM member_keys WHERE member_id = $1 AND status = $2`,
			memberID, int16(StatusActive),
		).Scan(&active)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if active >= in.MaxActiveKeys {
			return "", ErrQuotaExceeded
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO member_keys (id, member_id, key_hash, key_suffix, status, created_at, expires_at, total_unlocks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0)`,
		in.Key.ID,
		memberID,
		in.Key.KeyHash,
		in.Key.KeySuffix,
		int16(in.Key.Status),
		in.Key.CreatedAt.UTC(),
		in.Key.ExpiresAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return memberID, nil
}

// GetKeyByHash fetches a key by hashed secret.
func (s *PostgresStore) GetKeyByHash(ctx context.Context, keyHash string) (*Key, error) {
	var (
		key        Key
		status     int16
		lastUsedAt *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, member_id, key_suffix, status, created_at, expires_at, total_unlocks, last_used_at
		   FROM member_keys
		  WHERE key_hash = $1`,
		keyHash,
	).Scan(&key.ID, &key.MemberID, &key.KeySuffix, &status, &key.CreatedAt, &key.ExpiresAt, &key.TotalUnlocks, &lastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	key.KeyHash = keyHash
	key.Status = Status(status)
	if lastUsedAt != nil {
		key.LastUsedAt = *lastUsedAt
	}
	return &key, nil
}

// RecordUnlock bumps usage counters on the key and freshness on its member.
func (s *PostgresStore) RecordUnlock(ctx context.Context, keyHash, ip string, at time.Time) error {
	var memberID string
	err := s.pool.QueryRow(ctx,
		`UPDATE member_keys
		    SET total_unlocks = total_unlocks + 1,
		        last_used_at = $2
		  WHERE key_hash = $1
		 RETURNING member_id`,
		keyHash,
		at.UTC(),
	).Scan(&memberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE members
		    SET last_seen_at = $2,
		        last_ip = CASE WHEN $3 <> '' THEN $3 ELSE last_ip END
		  WHERE id = $1`,
		memberID,
		at.UTC(),
		ip,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// SetKeyStatus applies a guarded transition and reports the prior status.
func (s *PostgresStore) SetKeyStatus(ctx context.Context, keyID string, from []Status, to Status) (Status, bool, error) {
	fromOrdinals := make([]int16, len(from))
	for i, f := range from {
		fromOrdinals[i] = int16(f)
	}

	var prev int16
	err := s.pool.QueryRow(ctx,
		`UPDATE member_keys mk
		    SET status = CASE WHEN mk.status = ANY($2) THEN $3 ELSE mk.status END
		   FROM (SELECT status AS old_status FROM member_keys WHERE id = $1 FOR UPDATE) prior
		  WHERE mk.id = $1
		 RETURNING prior.old_status`,
		keyID,
		fromOrdinals,
		int16(to),
	).Scan(&prev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ErrNotFound
		}
		return 0, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	prevStatus := Status(prev)
	for _, f := range from {
		if prevStatus == f {
			return prevStatus, true, nil
		}
	}
	return prevStatus, false, nil
}

// ExpireKeys bulk-transitions active keys past expiry. Idempotent by
// construction: a second run matches zero rows.
func (s *PostgresStore) ExpireKeys(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE member_keys
		    SET status = $1
		  WHERE status = $2
		    AND expires_at <= $3`,
		int16(StatusExpired),
		int16(StatusActive),
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

// GetMemberByEmailHash fetches a member record.
func (s *PostgresStore) GetMemberByEmailHash(ctx context.Context, emailHash string) (*Member, error) {
	var m Member
	err := s.pool.QueryRow(ctx,
		`SELECT id, email_hash_prefix, name, last_ip, metadata, created_at, last_seen_at
		   FROM members
		  WHERE email_hash = $1`,
		emailHash,
	).Scan(&m.ID, &m.EmailHashPrefix, &m.Name, &m.LastIP, &m.Metadata, &m.CreatedAt, &m.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	m.EmailHash = emailHash
	return &m, nil
}

// CountActiveKeys counts a member's active keys.
func (s *PostgresStore) CountActiveKeys(ctx context.Context, memberID string) (int, error) {
	var active int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM member_keys WHERE member_id = $1 AND status = $2`,
		memberID, int16(StatusActive),
	).Scan(&active)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return active, nil
}
