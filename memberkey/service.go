package memberkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/aolweb/innercircle/credential"
)

// Config tunes the key lifecycle.
type Config struct {
	// KeyTTL is the lifetime of a newly issued key.
	KeyTTL time.Duration
	// MaxKeysPerMember caps a member's concurrently active keys.
	MaxKeysPerMember int
	// SuffixLength is how many trailing characters of the raw key are kept
	// for display.
	SuffixLength int
	// EmailHashPrefixLen is how many hex characters of the email hash are
	// stored for indexed prefix lookups.
	EmailHashPrefixLen int
}

const (
	defaultKeyTTL             = 90 * 24 * time.Hour
	defaultMaxKeysPerMember   = 3
	defaultSuffixLength       = 8
	defaultEmailHashPrefixLen = 12
)

func (c Config) withDefaults() Config {
	if c.KeyTTL <= 0 {
		c.KeyTTL = defaultKeyTTL
	}
	if c.MaxKeysPerMember <= 0 {
		c.MaxKeysPerMember = defaultMaxKeysPerMember
	}
	if c.SuffixLength <= 0 {
		c.SuffixLength = defaultSuffixLength
	}
	if c.EmailHashPrefixLen <= 0 {
		c.EmailHashPrefixLen = defaultEmailHashPrefixLen
	}
	return c
}

// IssueParams identifies the member receiving a key. Email is the only
// required field.
type IssueParams struct {
	Email    string
	Name     string
	IP       string
	Metadata map[string]string
}

// Service implements the member key lifecycle over a Store.
type Service struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// NewService wires a Service. Zero Config fields take documented defaults.
func NewService(store Store, cfg Config) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	return &Service{
		store: store,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
	}, nil
}

// WithClock replaces the service's time source, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue creates a member key, upserting the member by email hash. The raw
// key appears only in the returned IssuedKey; the store sees its hash and
// display suffix. A member at the active-key quota gets ErrQuotaExceeded
// and no state change.
func (s *Service) Issue(ctx context.Context, p IssueParams) (*IssuedKey, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: empty email", ErrInvalidInput)
	}

	rawKey, err := credential.NewMemberKey()
	if err != nil {
		return nil, err
	}

	now := s.now()
	key := Key{
		ID:        ulid.Make().String(),
		KeyHash:   credential.HashHex(rawKey),
		KeySuffix: credential.Suffix(rawKey, s.cfg.SuffixLength),
		Status:    StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.KeyTTL),
	}

	memberID, err := s.store.IssueKey(ctx, IssueRecord{
		Member: MemberUpsert{
			MemberID:        uuid.NewString(),
			EmailHash:       credential.HashHex(email),
			EmailHashPrefix: credential.HashPrefix(email, s.cfg.EmailHashPrefixLen),
			Name:            strings.TrimSpace(p.Name),
			IP:              p.IP,
			Metadata:        p.Metadata,
			Now:             now,
		},
		Key:           key,
		MaxActiveKeys: s.cfg.MaxKeysPerMember,
	})
	if err != nil {
		return nil, err
	}

	return &IssuedKey{
		RawKey:    rawKey,
		KeyID:     key.ID,
		KeySuffix: key.KeySuffix,
		MemberID:  memberID,
		ExpiresAt: key.ExpiresAt,
	}, nil
}

// Verify checks a presented raw key and returns a discriminated result.
// The error return is reserved for storage faults; every key-level outcome,
// valid or not, arrives as a Verification with a nil error.
//
// Expiry is judged at read time against the wall clock, so a key past its
// lifetime reads as expired even before the sweep has stamped it.
func (s *Service) Verify(ctx context.Context, rawKey string) (Verification, error) {
	if rawKey == "" {
		return Verification{Reason: ReasonEmpty}, nil
	}
	if _, err := credential.ParseMemberKey(rawKey); err != nil {
		// Malformed input never reaches the store.
		return Verification{Reason: ReasonNotFound}, nil
	}

	key, err := s.store.GetKeyByHash(ctx, credential.HashHex(rawKey))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Verification{Reason: ReasonNotFound}, nil
		}
		return Verification{}, err
	}

	v := Verification{
		MemberID:  key.MemberID,
		KeyID:     key.ID,
		Status:    key.Status,
		ExpiresAt: key.ExpiresAt,
	}

	switch key.Status {
	case StatusPending:
		v.Reason = ReasonNotFound
		return v, nil
	case StatusRevoked:
		v.Reason = ReasonRevoked
		return v, nil
	case StatusSuspended:
		v.Reason = ReasonSuspended
		return v, nil
	case StatusExpired:
		v.Reason = ReasonExpired
		return v, nil
	}

	if !s.now().Before(key.ExpiresAt) {
		v.Reason = ReasonExpired
		return v, nil
	}

	v.Valid = true
	return v, nil
}

// RecordUnlock bumps the key's usage counter after a successful unlock.
// Callers treat this as best-effort bookkeeping; an error here never blocks
// the unlock itself.
func (s *Service) RecordUnlock(ctx context.Context, rawKey, ip string) error {
	if _, err := credential.ParseMemberKey(rawKey); err != nil {
		return ErrNotFound
	}
	return s.store.RecordUnlock(ctx, credential.HashHex(rawKey), ip, s.now())
}

// Revoke terminates a key. Revoking an already revoked key is a no-op;
// revoking an expired key is rejected because expiry is terminal.
func (s *Service) Revoke(ctx context.Context, keyID string) error {
	prev, changed, err := s.store.SetKeyStatus(ctx, keyID,
		[]Status{StatusPending, StatusActive, StatusSuspended}, StatusRevoked)
	if err != nil {
		return err
	}
	if changed || prev == StatusRevoked {
		return nil
	}
	return fmt.Errorf("%w: %s -> revoked", ErrInvalidTransition, prev)
}

// Suspend places an administrative hold on an active key.
func (s *Service) Suspend(ctx context.Context, keyID string) error {
	prev, changed, err := s.store.SetKeyStatus(ctx, keyID,
		[]Status{StatusActive}, StatusSuspended)
	if err != nil {
		return err
	}
	if changed || prev == StatusSuspended {
		return nil
	}
	return fmt.Errorf("%w: %s -> suspended", ErrInvalidTransition, prev)
}

// Reinstate lifts a suspension. Whether the key is then usable still
// depends on its expiry at verification time.
func (s *Service) Reinstate(ctx context.Context, keyID string) error {
	prev, changed, err := s.store.SetKeyStatus(ctx, keyID,
		[]Status{StatusSuspended}, StatusActive)
	if err != nil {
		return err
	}
	if changed || prev == StatusActive {
		return nil
	}
	return fmt.Errorf("%w: %s -> active", ErrInvalidTransition, prev)
}

// CleanupExpired sweeps active keys past expiry into the expired status.
func (s *Service) CleanupExpired(ctx context.Context) (CleanupResult, error) {
	n, err := s.store.ExpireKeys(ctx, s.now())
	if err != nil {
		return CleanupResult{}, err
	}
	return CleanupResult{Expired: n}, nil
}
