package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when a session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrRefreshHashMismatch means the presented refresh secret was already
	// rotated away; the session has been deleted.
	ErrRefreshHashMismatch = errors.New("refresh hash mismatch")
	// ErrRedisUnavailable wraps transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrCorrupt is returned for hashes missing required fields.
	ErrCorrupt = errors.New("session record corrupt")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

const (
	fieldUserID    = "uid"
	fieldRole      = "role"
	fieldPerms     = "perms"
	fieldRefresh   = "rh"
	fieldUserAgent = "ua"
	fieldIP        = "ip"
	fieldCreated   = "ca"
	fieldRotated   = "ra"
	fieldExpires   = "ea"
)

const deleteSessionScript = `
local uid = redis.call("HGET", KEYS[1], "uid")
local existed = redis.call("DEL", KEYS[1])
if uid then
  redis.call("SREM", ARGV[1] .. uid, ARGV[2])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

const rotateRefreshScript = `
local session_key = KEYS[1]
local user_prefix = ARGV[1]
local session_id = ARGV[2]
local provided_hash = ARGV[3]
local next_hash = ARGV[4]
local now_unix = tonumber(ARGV[5])

local fields = redis.call("HMGET", session_key, "uid", "rh", "ea")
local uid = fields[1]
if not uid then
  return {0}
end

local function destroy()
  redis.call("DEL", session_key)
  redis.call("SREM", user_prefix .. uid, session_id)
end

local expires_at = tonumber(fields[3] or "0")
if expires_at <= now_unix then
  destroy()
  return {1}
end

if fields[2] ~= provided_hash then
  destroy()
  return {2}
end

redis.call("HSET", session_key, "rh", next_hash, "ra", ARGV[5])
return {3, unpack(redis.call("HGETALL", session_key))}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is the Redis-backed session repository.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store]. prefix namespaces every key.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sf"
	}
	return &Store{
		redis:  rdb,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userPrefix() string {
	return s.prefix + ":u:"
}

func (s *Store) userKey(userID string) string {
	return s.userPrefix() + userID
}

// Save writes sess and indexes it under its user. Every session shares the
// same TTL, so refreshing the index TTL keeps it alive as long as the
// newest session.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	key := s.key(sess.SessionID)
	userKey := s.userKey(sess.UserID)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encode(sess))
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, userKey, sess.SessionID)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a session. Expired or missing sessions yield [ErrNotFound].
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	sess, err := decode(sessionID, fields)
	if err != nil {
		return nil, err
	}
	if sess.ExpiresAt <= time.Now().Unix() {
		_ = s.Delete(ctx, sessionID)
		return nil, ErrNotFound
	}
	return sess, nil
}

// Delete removes a session and its index entry. Deleting a missing
// session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID)}, s.userPrefix(), sessionID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every indexed session of userID.
//
// A session saved between the SMEMBERS read and the delete is not
// captured; it remains valid until it expires or is revoked.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, sid := range sessionIDs {
		keys = append(keys, s.key(sid))
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// ListForUser returns the user's live sessions, newest first. Index
// entries whose session has expired are pruned as a side effect.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.HGetAll(ctx, s.key(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := time.Now().Unix()
	out := make([]*Session, 0, len(sessionIDs))
	var stale []interface{}
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			stale = append(stale, sessionIDs[i])
			continue
		}
		sess, err := decode(sessionIDs[i], fields)
		if err != nil || sess.ExpiresAt <= now {
			stale = append(stale, sessionIDs[i])
			continue
		}
		out = append(out, sess)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out, nil
}

// ActiveSessionCount returns the number of indexed session IDs for a user.
// The count may include sessions that expired since the last listing.
func (s *Store) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// RotateRefreshHash atomically swaps the stored refresh hash from
// providedHash to nextHash. A mismatch deletes the session and returns
// [ErrRefreshHashMismatch].
func (s *Store) RotateRefreshHash(
	ctx context.Context,
	sessionID string,
	providedHash [32]byte,
	nextHash [32]byte,
) (*Session, error) {
	result, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		s.userPrefix(),
		sessionID,
		hex.EncodeToString(providedHash[:]),
		hex.EncodeToString(nextHash[:]),
		time.Now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid refresh script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid refresh script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound, rotateStatusExpired:
		return nil, ErrNotFound
	case rotateStatusMismatch:
		return nil, ErrRefreshHashMismatch
	case rotateStatusRotated:
		fields := make(map[string]string, (len(parts)-1)/2)
		for i := 1; i+1 < len(parts); i += 2 {
			k, _ := parts[i].(string)
			v, _ := parts[i+1].(string)
			fields[k] = v
		}
		return decode(sessionID, fields)
	default:
		return nil, fmt.Errorf("%w: unknown refresh script status", ErrRedisUnavailable)
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func encode(sess *Session) map[string]interface{} {
	return map[string]interface{}{
		fieldUserID:    sess.UserID,
		fieldRole:      sess.Role,
		fieldPerms:     strconv.FormatUint(sess.Perms, 10),
		fieldRefresh:   hex.EncodeToString(sess.RefreshHash[:]),
		fieldUserAgent: sess.UserAgent,
		fieldIP:        sess.IP,
		fieldCreated:   strconv.FormatInt(sess.CreatedAt, 10),
		fieldRotated:   strconv.FormatInt(sess.RotatedAt, 10),
		fieldExpires:   strconv.FormatInt(sess.ExpiresAt, 10),
	}
}

func decode(sessionID string, fields map[string]string) (*Session, error) {
	sess := &Session{
		SessionID: sessionID,
		UserID:    fields[fieldUserID],
		Role:      fields[fieldRole],
		UserAgent: fields[fieldUserAgent],
		IP:        fields[fieldIP],
	}
	if sess.UserID == "" {
		return nil, ErrCorrupt
	}

	var err error
	if sess.Perms, err = strconv.ParseUint(fields[fieldPerms], 10, 64); err != nil {
		return nil, ErrCorrupt
	}
	if sess.CreatedAt, err = strconv.ParseInt(fields[fieldCreated], 10, 64); err != nil {
		return nil, ErrCorrupt
	}
	if sess.ExpiresAt, err = strconv.ParseInt(fields[fieldExpires], 10, 64); err != nil {
		return nil, ErrCorrupt
	}
	if v := fields[fieldRotated]; v != "" {
		sess.RotatedAt, _ = strconv.ParseInt(v, 10, 64)
	}

	raw, err := hex.DecodeString(fields[fieldRefresh])
	if err != nil || len(raw) != len(sess.RefreshHash) {
		return nil, ErrCorrupt
	}
	copy(sess.RefreshHash[:], raw)

	return sess, nil
}
