package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// A claim is a single Redis string: fingerprint, status, response status
// code, content type and base64 body joined by the unit separator. The
// fingerprint-plus-separator prefix doubles as the ownership check in the
// guarded scripts below.
const claimFieldSep = "\x1f"

var redisClaimCompleteScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return 0
end
if string.sub(raw, 1, string.len(ARGV[1])) ~= ARGV[1] then
  return -1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

var redisClaimAbortScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return 0
end
if string.sub(raw, 1, string.len(ARGV[1])) ~= ARGV[1] then
  return 0
end
if string.sub(raw, 1, string.len(ARGV[2])) == ARGV[2] then
  return 0
end
redis.call("DEL", KEYS[1])
return 1
`)

// RedisIdempotencyStore is the shared-state variant for multi-replica
// deployments. SETNX claims the key; the scripts mutate a claim only when
// the caller's fingerprint owns it.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisIdempotencyStore(client redis.UniversalClient, prefix string) *RedisIdempotencyStore {
	if prefix == "" {
		prefix = "idem"
	}
	return &RedisIdempotencyStore{client: client, prefix: prefix}
}

func (s *RedisIdempotencyStore) claimKey(scope, key string) string {
	return s.prefix + ":" + scope + ":" + key
}

type redisClaim struct {
	fingerprint string
	status      string
	response    CachedResponse
}

func encodeClaim(fingerprint, status string, response CachedResponse) string {
	return strings.Join([]string{
		fingerprint,
		status,
		strconv.Itoa(response.StatusCode),
		response.ContentType,
		base64.StdEncoding.EncodeToString(response.Body),
	}, claimFieldSep)
}

func decodeClaim(raw string) (*redisClaim, error) {
	parts := strings.SplitN(raw, claimFieldSep, 5)
	if len(parts) != 5 {
		return nil, fmt.Errorf("malformed idempotency claim")
	}
	statusCode, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("parse claim status code: %w", err)
	}
	body, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("decode claim body: %w", err)
	}
	return &redisClaim{
		fingerprint: parts[0],
		status:      parts[1],
		response: CachedResponse{
			StatusCode:  statusCode,
			ContentType: parts[3],
			Body:        body,
		},
	}, nil
}

func (s *RedisIdempotencyStore) Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error) {
	claimKey := s.claimKey(scope, key)
	fresh := encodeClaim(fingerprint, idempotencyStatusNew, CachedResponse{})

	// The second round covers a competing claim expiring between the
	// failed SETNX and the read.
	for attempt := 0; attempt < 2; attempt++ {
		claimed, err := s.client.SetNX(ctx, claimKey, fresh, ttl).Result()
		if err != nil {
			return IdempotencyBeginResult{}, err
		}
		if claimed {
			return IdempotencyBeginResult{State: IdempotencyStateNew}, nil
		}

		raw, err := s.client.Get(ctx, claimKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return IdempotencyBeginResult{}, err
		}
		existing, err := decodeClaim(raw)
		if err != nil {
			return IdempotencyBeginResult{}, err
		}
		if existing.fingerprint != fingerprint {
			return IdempotencyBeginResult{State: IdempotencyStateConflict}, nil
		}
		if existing.status == idempotencyStatusCompleted {
			cached := existing.response
			return IdempotencyBeginResult{State: IdempotencyStateReplay, Cached: &cached}, nil
		}
		return IdempotencyBeginResult{State: IdempotencyStateInProgress}, nil
	}
	return IdempotencyBeginResult{State: IdempotencyStateInProgress}, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, scope, key, fingerprint string, response CachedResponse, ttl time.Duration) error {
	outcome, err := redisClaimCompleteScript.Run(
		ctx,
		s.client,
		[]string{s.claimKey(scope, key)},
		fingerprint+claimFieldSep,
		encodeClaim(fingerprint, idempotencyStatusCompleted, response),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return err
	}
	if outcome <= 0 {
		return fmt.Errorf("idempotency claim missing or not owned on complete")
	}
	return nil
}

// Abort drops an unfinished claim owned by fingerprint. Completed claims
// stay so replays keep serving the cached outcome.
func (s *RedisIdempotencyStore) Abort(ctx context.Context, scope, key, fingerprint string) error {
	owner := fingerprint + claimFieldSep
	return redisClaimAbortScript.Run(
		ctx,
		s.client,
		[]string{s.claimKey(scope, key)},
		owner,
		owner+idempotencyStatusCompleted+claimFieldSep,
	).Err()
}
