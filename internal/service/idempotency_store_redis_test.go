package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisIdempotencyStoreForTest(t *testing.T) *RedisIdempotencyStore {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyStore(client, "idem_test")
}

func TestRedisIdempotencyStoreBeginCompleteReplay(t *testing.T) {
	store := newRedisIdempotencyStoreForTest(t)
	ctx := context.Background()

	begin, err := store.Begin(ctx, "payment_confirm", "cs_1", "fp", time.Hour)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if begin.State != IdempotencyStateNew {
		t.Fatalf("expected new, got %s", begin.State)
	}

	inProgress, err := store.Begin(ctx, "payment_confirm", "cs_1", "fp", time.Hour)
	if err != nil {
		t.Fatalf("begin in-progress: %v", err)
	}
	if inProgress.State != IdempotencyStateInProgress {
		t.Fatalf("expected in_progress, got %s", inProgress.State)
	}

	cached := CachedResponse{StatusCode: 200, ContentType: "text/plain", Body: []byte("http://host/report?key=k")}
	if err := store.Complete(ctx, "payment_confirm", "cs_1", "fp", cached, time.Hour); err != nil {
		t.Fatalf("complete: %v", err)
	}

	replay, err := store.Begin(ctx, "payment_confirm", "cs_1", "fp", time.Hour)
	if err != nil {
		t.Fatalf("begin replay: %v", err)
	}
	if replay.State != IdempotencyStateReplay {
		t.Fatalf("expected replay, got %s", replay.State)
	}
	if replay.Cached == nil || replay.Cached.StatusCode != 200 || string(replay.Cached.Body) != string(cached.Body) {
		t.Fatalf("unexpected cached response: %+v", replay.Cached)
	}
}

func TestRedisIdempotencyStoreAbortReleasesUnfinishedClaim(t *testing.T) {
	store := newRedisIdempotencyStoreForTest(t)
	ctx := context.Background()

	if _, err := store.Begin(ctx, "payment_confirm", "cs_abort", "fp", time.Hour); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := store.Abort(ctx, "payment_confirm", "cs_abort", "fp"); err != nil {
		t.Fatalf("abort: %v", err)
	}

	retaken, err := store.Begin(ctx, "payment_confirm", "cs_abort", "fp", time.Hour)
	if err != nil {
		t.Fatalf("begin after abort: %v", err)
	}
	if retaken.State != IdempotencyStateNew {
		t.Fatalf("expected released claim to be retakeable, got %s", retaken.State)
	}
}

func TestRedisIdempotencyStoreAbortKeepsCompletedOutcome(t *testing.T) {
	store := newRedisIdempotencyStoreForTest(t)
	ctx := context.Background()

	if _, err := store.Begin(ctx, "payment_confirm", "cs_done", "fp", time.Hour); err != nil {
		t.Fatalf("begin: %v", err)
	}
	cached := CachedResponse{StatusCode: 200, ContentType: "text/plain", Body: []byte("http://host/report?key=k")}
	if err := store.Complete(ctx, "payment_confirm", "cs_done", "fp", cached, time.Hour); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.Abort(ctx, "payment_confirm", "cs_done", "fp"); err != nil {
		t.Fatalf("abort: %v", err)
	}

	replay, err := store.Begin(ctx, "payment_confirm", "cs_done", "fp", time.Hour)
	if err != nil {
		t.Fatalf("begin after abort: %v", err)
	}
	if replay.State != IdempotencyStateReplay {
		t.Fatalf("abort must not discard a completed outcome, got %s", replay.State)
	}
	if replay.Cached == nil || string(replay.Cached.Body) != string(cached.Body) {
		t.Fatalf("unexpected cached response: %+v", replay.Cached)
	}
}

func TestRedisIdempotencyStoreConflict(t *testing.T) {
	store := newRedisIdempotencyStoreForTest(t)
	ctx := context.Background()

	if _, err := store.Begin(ctx, "payment_confirm", "cs_2", "fp-a", time.Hour); err != nil {
		t.Fatalf("begin: %v", err)
	}
	got, err := store.Begin(ctx, "payment_confirm", "cs_2", "fp-b", time.Hour)
	if err != nil {
		t.Fatalf("begin conflicting: %v", err)
	}
	if got.State != IdempotencyStateConflict {
		t.Fatalf("expected conflict, got %s", got.State)
	}
}
