package memberkey

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps members and keys in process-local maps behind one
// mutex. Development and test use; the Postgres store is the durable
// deployment backend.
type MemoryStore struct {
	mu      sync.Mutex
	members map[string]*Member // email hash → member
	keys    map[string]*Key    // key hash → key
	byID    map[string]string  // key ID → key hash
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members: make(map[string]*Member),
		keys:    make(map[string]*Key),
		byID:    make(map[string]string),
	}
}

// IssueKey checks the quota before touching any state, so a rejected
// issuance leaves members and keys exactly as they were.
func (s *MemoryStore) IssueKey(_ context.Context, in IssueRecord) (string, error) {
	if in.Member.EmailHash == "" || in.Key.KeyHash == "" {
		return "", ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	member := s.members[in.Member.EmailHash]

	if member != nil && in.MaxActiveKeys > 0 {
		active := 0
		for _, k := range s.keys {
			if k.MemberID == member.ID && k.Status == StatusActive {
				active++
			}
		}
		if active >= in.MaxActiveKeys {
			return "", ErrQuotaExceeded
		}
	}

	if member == nil {
		member = &Member{
			ID:              in.Member.MemberID,
			EmailHash:       in.Member.EmailHash,
			EmailHashPrefix: in.Member.EmailHashPrefix,
			Name:            in.Member.Name,
			LastIP:          in.Member.IP,
			Metadata:        in.Member.Metadata,
			CreatedAt:       in.Member.Now,
			LastSeenAt:      in.Member.Now,
		}
		s.members[member.EmailHash] = member
	} else {
		member.LastSeenAt = in.Member.Now
		if in.Member.IP != "" {
			member.LastIP = in.Member.IP
		}
		if in.Member.Name != "" {
			member.Name = in.Member.Name
		}
	}

	key := in.Key
	key.MemberID = member.ID
	s.keys[key.KeyHash] = &key
	s.byID[key.ID] = key.KeyHash

	return member.ID, nil
}

// GetKeyByHash returns a copy of the key record.
func (s *MemoryStore) GetKeyByHash(_ context.Context, keyHash string) (*Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *key
	return &cp, nil
}

// RecordUnlock bumps the usage counter and freshness stamps.
func (s *MemoryStore) RecordUnlock(_ context.Context, keyHash, ip string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyHash]
	if !ok {
		return ErrNotFound
	}
	key.TotalUnlocks++
	key.LastUsedAt = at

	for _, m := range s.members {
		if m.ID == key.MemberID {
			m.LastSeenAt = at
			if ip != "" {
				m.LastIP = ip
			}
			break
		}
	}
	return nil
}

// SetKeyStatus applies the transition when the current status is in from.
func (s *MemoryStore) SetKeyStatus(_ context.Context, keyID string, from []Status, to Status) (Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.byID[keyID]
	if !ok {
		return 0, false, ErrNotFound
	}
	key := s.keys[hash]

	prev := key.Status
	for _, f := range from {
		if prev == f {
			key.Status = to
			return prev, true, nil
		}
	}
	return prev, false, nil
}

// ExpireKeys stamps active keys past expiry; running it twice in a row
// changes nothing the second time.
func (s *MemoryStore) ExpireKeys(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, key := range s.keys {
		if key.Status == StatusActive && !now.Before(key.ExpiresAt) {
			key.Status = StatusExpired
			expired++
		}
	}
	return expired, nil
}

// GetMemberByEmailHash returns a copy of the member record.
func (s *MemoryStore) GetMemberByEmailHash(_ context.Context, emailHash string) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[emailHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *member
	return &cp, nil
}

// CountActiveKeys counts the member's active keys.
func (s *MemoryStore) CountActiveKeys(_ context.Context, memberID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	for _, k := range s.keys {
		if k.MemberID == memberID && k.Status == StatusActive {
			active++
		}
	}
	return active, nil
}
