package stores

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

var (
	ErrChallengeNotFound         = errors.New("challenge not found")
	ErrChallengeSecretMismatch   = errors.New("challenge secret mismatch")
	ErrChallengeAttemptsExceeded = errors.New("challenge attempts exceeded")
	ErrChallengeRedisUnavailable = errors.New("challenge redis unavailable")
)

// Challenge is one outstanding reset or verification link.
type Challenge struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	HashHex   string `json:"h"`
	ExpiresAt int64  `json:"exp"`
	Attempts  int    `json:"n"`
}

// SecretHash decodes the stored digest.
func (c *Challenge) SecretHash() [32]byte {
	var out [32]byte
	raw, err := hex.DecodeString(c.HashHex)
	if err == nil && len(raw) == len(out) {
		copy(out[:], raw)
	}
	return out
}

// ChallengeStore keeps challenges under "<prefix>:<id>" and the current
// challenge ID of each user under "<prefix>:u:<userID>". A user has at most
// one live challenge per store; saving a new one retires the old. One store
// is created per challenge kind with a distinct prefix.
type ChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewChallengeStore(redisClient redis.UniversalClient, prefix string) *ChallengeStore {
	return &ChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ChallengeStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *ChallengeStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

const saveChallengeScript = `
local prev = redis.call("GET", KEYS[2])
if prev and prev ~= ARGV[1] then
  redis.call("DEL", ARGV[2] .. prev)
end
redis.call("SET", KEYS[1], ARGV[3], "PX", ARGV[4])
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[4])
return 1
`

var saveChallengeLua = redis.NewScript(saveChallengeScript)

// Save stores a challenge for userID that expires after ttl and deletes
// any challenge previously saved for the same user.
func (s *ChallengeStore) Save(ctx context.Context, id, userID, email string, secretHash [32]byte, ttl time.Duration) error {
	record := Challenge{
		UserID:    userID,
		Email:     email,
		HashHex:   hex.EncodeToString(secretHash[:]),
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	err = saveChallengeLua.Run(
		ctx,
		s.redis,
		[]string{s.key(id), s.userKey(userID)},
		id,
		s.prefix+":",
		encoded,
		ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}

// Consume checks providedHash against the stored digest. On a match the
// record is deleted and returned. A mismatch bumps the attempt counter and
// deletes the record once maxAttempts is reached.
func (s *ChallengeStore) Consume(ctx context.Context, id string, providedHash [32]byte, maxAttempts int) (*Challenge, error) {
	const maxRetries = 4
	key := s.key(id)

	for i := 0; i < maxRetries; i++ {
		var matched *Challenge

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrChallengeNotFound
				}
				return err
			}

			var record Challenge
			if err := json.Unmarshal(data, &record); err != nil {
				return deleteThen(ctx, tx, key, ErrChallengeNotFound)
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				return deleteThen(ctx, tx, key, ErrChallengeNotFound)
			}

			stored := record.SecretHash()
			if subtle.ConstantTimeCompare(stored[:], providedHash[:]) != 1 {
				record.Attempts++
				if maxAttempts > 0 && record.Attempts >= maxAttempts {
					return deleteThen(ctx, tx, key, ErrChallengeAttemptsExceeded)
				}

				updated, err := json.Marshal(record)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeSecretMismatch
			}

			if err := deleteThen(ctx, tx, key, nil); err != nil {
				return err
			}
			matched = &record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, ErrChallengeNotFound),
				errors.Is(err, ErrChallengeSecretMismatch),
				errors.Is(err, ErrChallengeAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
			}
		}
		return matched, nil
	}

	return nil, ErrChallengeNotFound
}

// DeleteForUser drops the live challenge of userID, if any.
func (s *ChallengeStore) DeleteForUser(ctx context.Context, userID string) error {
	id, err := s.redis.Get(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	if err := s.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.redis.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}

// Delete drops a challenge regardless of state.
func (s *ChallengeStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}

func deleteThen(ctx context.Context, tx *redis.Tx, key string, result error) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return err
	}
	return result
}
