package tokenstore

import (
	"context"
	"sync"
	"time"
)

// Memory is the single-process backend. All state lives behind one mutex,
// which makes consume trivially atomic. Nothing survives a restart; this
// backend is for development and single-instance deployments.
type Memory struct {
	mu       sync.Mutex
	tokens   map[string]*OneTimeToken
	sessions map[string]*Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tokens:   make(map[string]*OneTimeToken),
		sessions: make(map[string]*Session),
	}
}

// PutOneTimeToken stores a copy of the record keyed by its hash.
func (m *Memory) PutOneTimeToken(_ context.Context, tok *OneTimeToken) error {
	cp := *tok

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tok.TokenHash] = &cp
	return nil
}

// GetOneTimeToken returns a copy of the record, applying lazy expiry.
func (m *Memory) GetOneTimeToken(_ context.Context, tokenHash string) (*OneTimeToken, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	if tok.ConsumedAt == 0 && !tok.Revoked && now.Unix() >= tok.ExpiresAt {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

// ConsumeOneTimeToken performs the check-and-stamp under the store mutex,
// so concurrent callers serialize and exactly one observes Consumed. The
// winner receives a copy of the stamped record.
func (m *Memory) ConsumeOneTimeToken(_ context.Context, tokenHash string, now time.Time) (*OneTimeToken, ConsumeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[tokenHash]
	if !ok {
		return nil, NotFound, nil
	}
	if tok.Revoked {
		return nil, Revoked, nil
	}
	if tok.ConsumedAt != 0 {
		return nil, AlreadyConsumed, nil
	}
	if now.Unix() >= tok.ExpiresAt {
		return nil, Expired, nil
	}

	tok.ConsumedAt = now.Unix()
	cp := *tok
	return &cp, Consumed, nil
}

// RevokeOneTimeToken marks the record revoked; missing records are a no-op.
func (m *Memory) RevokeOneTimeToken(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tok, ok := m.tokens[tokenHash]; ok {
		tok.Revoked = true
	}
	return nil
}

// GetSession returns a copy of the live session, or ErrNotFound after
// revocation or expiry.
func (m *Memory) GetSession(_ context.Context, sessionID string, now time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok || !sess.Live(now) {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// UpsertSession stores a copy of the session, overwriting any prior state.
func (m *Memory) UpsertSession(_ context.Context, sess *Session) error {
	cp := *sess

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.SessionID] = &cp
	return nil
}

// RevokeSession marks the session revoked; missing sessions are a no-op.
func (m *Memory) RevokeSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		sess.Revoked = true
	}
	return nil
}

// Prune drops token and session records that are past expiry. Correctness
// never depends on it; expiry is evaluated lazily on every read. It exists
// only to bound memory in long-lived processes.
func (m *Memory) Prune(now time.Time) (tokens, sessions int) {
	cutoff := now.Unix()

	m.mu.Lock()
	defer m.mu.Unlock()

	for hash, tok := range m.tokens {
		if cutoff >= tok.ExpiresAt {
			delete(m.tokens, hash)
			tokens++
		}
	}
	for id, sess := range m.sessions {
		if cutoff >= sess.ExpiresAt {
			delete(m.sessions, id)
			sessions++
		}
	}
	return tokens, sessions
}
