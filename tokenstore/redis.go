package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeTokenLua atomically performs GET→validate→stamp on a token record.
// KEYS[1] = token record key
// ARGV[1] = current unix timestamp (int string)
//
// Returns the updated record bytes on success, or an error string:
// "not_found", "revoked", "already_consumed", "expired".
var consumeTokenLua = redis.NewScript(`
local function read_be64(s, i)
  local v = 0
  for o = 0, 7 do
    local b = string.byte(s, i + o)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local function write_be64(n)
  local b = {}
  for i = 8, 1, -1 do
    b[i] = n % 256
    n = math.floor(n / 256)
  end
  return string.char(b[1], b[2], b[3], b[4], b[5], b[6], b[7], b[8])
end

local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

-- Layout: version(1) tier(1) flags(1) issuedAt(8) expiresAt(8) consumedAt(8) subjectLen(2) subject
local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local flags = string.byte(data, 3)
if flags % 2 == 1 then
  return {err='revoked'}
end

local consumedAt = read_be64(data, 20)
if not consumedAt then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end
if consumedAt ~= 0 then
  return {err='already_consumed'}
end

local expiresAt = read_be64(data, 12)
local nowUnix = tonumber(ARGV[1])
if not expiresAt or nowUnix >= expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

local ttl = redis.call('PTTL', KEYS[1])
if ttl <= 0 then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

local stamped = string.sub(data, 1, 19) .. write_be64(nowUnix) .. string.sub(data, 28)
redis.call('SET', KEYS[1], stamped, 'PX', ttl)
return stamped
`)

// revokeRecordLua sets the revoked flag in place, preserving the TTL.
// Works for both token and session records: flags sit at byte 3 in each.
var revokeRecordLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return 0
end

local flags = string.byte(data, 3)
if flags % 2 == 1 then
  return 1
end

local ttl = redis.call('PTTL', KEYS[1])
if ttl <= 0 then
  redis.call('DEL', KEYS[1])
  return 0
end

local updated = string.sub(data, 1, 2) .. string.char(flags + 1) .. string.sub(data, 4)
redis.call('SET', KEYS[1], updated, 'PX', ttl)
return 1
`)

// Redis is the distributed-cache backend. Records are stored as versioned
// binary blobs with TTLs aligned to their expiry, and the consume transition
// runs server-side so multi-instance deployments keep the exactly-once
// guarantee.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed store. prefix namespaces all keys;
// it defaults to "icl".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "icl"
	}
	return &Redis{
		redis:  client,
		prefix: prefix,
	}
}

func (r *Redis) tokenKey(tokenHash string) string {
	return r.prefix + ":ott:" + tokenHash
}

func (r *Redis) sessionKey(sessionID string) string {
	return r.prefix + ":ses:" + sessionID
}

// PutOneTimeToken writes the encoded record with TTL = time to expiry.
// Tokens already past expiry are not written at all.
func (r *Redis) PutOneTimeToken(ctx context.Context, tok *OneTimeToken) error {
	ttl := time.Until(time.Unix(tok.ExpiresAt, 0))
	if ttl <= 0 {
		return nil
	}

	encoded, err := encodeToken(tok)
	if err != nil {
		return err
	}

	if err := r.redis.Set(ctx, r.tokenKey(tok.TokenHash), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// GetOneTimeToken fetches and decodes the record. TTL alignment means
// expired tokens are usually already gone; a still-present dead record is
// filtered by the same Live predicate as every other backend.
func (r *Redis) GetOneTimeToken(ctx context.Context, tokenHash string) (*OneTimeToken, error) {
	data, err := r.redis.Get(ctx, r.tokenKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	tok, err := decodeToken(data)
	if err != nil {
		return nil, err
	}
	tok.TokenHash = tokenHash

	if tok.ConsumedAt == 0 && !tok.Revoked && time.Now().Unix() >= tok.ExpiresAt {
		return nil, ErrNotFound
	}
	return tok, nil
}

// ConsumeOneTimeToken runs the server-side consume script. The read,
// precondition checks, and consumed stamp happen in one atomic eval with no
// interleaving window between concurrent callers. The script returns the
// stamped record bytes; decoding them here hands the winner the record even
// when the key's TTL fires immediately after the transition.
func (r *Redis) ConsumeOneTimeToken(ctx context.Context, tokenHash string, now time.Time) (*OneTimeToken, ConsumeStatus, error) {
	result, err := consumeTokenLua.Run(ctx, r.redis,
		[]string{r.tokenKey(tokenHash)},
		now.Unix(),
	).Result()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, NotFound, nil
		case "revoked":
			return nil, Revoked, nil
		case "already_consumed":
			return nil, AlreadyConsumed, nil
		case "expired":
			return nil, Expired, nil
		default:
			return nil, NotFound, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	stamped, ok := result.(string)
	if !ok {
		return nil, NotFound, fmt.Errorf("%w: unexpected lua result type", ErrStoreUnavailable)
	}
	tok, err := decodeToken([]byte(stamped))
	if err != nil {
		return nil, NotFound, err
	}
	tok.TokenHash = tokenHash
	return tok, Consumed, nil
}

// RevokeOneTimeToken flips the revoked flag server-side, keeping the TTL.
func (r *Redis) RevokeOneTimeToken(ctx context.Context, tokenHash string) error {
	if err := revokeRecordLua.Run(ctx, r.redis, []string{r.tokenKey(tokenHash)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// GetSession returns the live session or ErrNotFound. Revoked records are
// filtered here rather than deleted, so an admin revoke remains visible to
// debugging tools until the TTL fires.
func (r *Redis) GetSession(ctx context.Context, sessionID string, now time.Time) (*Session, error) {
	data, err := r.redis.Get(ctx, r.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID

	if !sess.Live(now) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// UpsertSession writes the session with TTL = time to expiry. Writing a
// session that is already past expiry deletes any stale record instead.
func (r *Redis) UpsertSession(ctx context.Context, sess *Session) error {
	key := r.sessionKey(sess.SessionID)

	ttl := time.Until(time.Unix(sess.ExpiresAt, 0))
	if ttl <= 0 {
		if err := r.redis.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}

	encoded, err := encodeSession(sess)
	if err != nil {
		return err
	}

	if err := r.redis.Set(ctx, key, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeSession flips the revoked flag; a missing session is a no-op.
func (r *Redis) RevokeSession(ctx context.Context, sessionID string) error {
	if err := revokeRecordLua.Run(ctx, r.redis, []string{r.sessionKey(sessionID)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
