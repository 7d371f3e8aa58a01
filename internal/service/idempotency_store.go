package service

import (
	"context"
	"time"
)

type IdempotencyState string

const (
	IdempotencyStateNew        IdempotencyState = "new"
	IdempotencyStateReplay     IdempotencyState = "replay"
	IdempotencyStateConflict   IdempotencyState = "conflict"
	IdempotencyStateInProgress IdempotencyState = "in_progress"
)

type CachedResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type IdempotencyBeginResult struct {
	State  IdempotencyState
	Cached *CachedResponse
}

// IdempotencyStore guards operations that must run at most once per key,
// such as issuing a token for a payment session. Begin claims the key;
// Complete records the outcome for replays; Abort releases a claim whose
// operation did not finish so a retry can claim the key again. Abort never
// discards a completed outcome.
type IdempotencyStore interface {
	Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error)
	Complete(ctx context.Context, scope, key, fingerprint string, response CachedResponse, ttl time.Duration) error
	Abort(ctx context.Context, scope, key, fingerprint string) error
}
