package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"go-report-access-service/internal/domain"
)

const (
	idempotencyStatusNew       = "new"
	idempotencyStatusCompleted = "completed"
)

// DBIdempotencyStore keeps idempotency claims in the relational store so
// deduplication survives restarts even without Redis.
type DBIdempotencyStore struct{ db *gorm.DB }

func NewDBIdempotencyStore(db *gorm.DB) *DBIdempotencyStore {
	return &DBIdempotencyStore{db: db}
}

func (s *DBIdempotencyStore) Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error) {
	now := time.Now().UTC()
	record := domain.IdempotencyRecord{
		Scope:           scope,
		IdempotencyKey:  key,
		FingerprintHash: fingerprint,
		Status:          idempotencyStatusNew,
		ExpiresAt:       now.Add(ttl),
	}
	err := s.db.WithContext(ctx).Create(&record).Error
	if err == nil {
		return IdempotencyBeginResult{State: IdempotencyStateNew}, nil
	}
	if !isUniqueViolation(err) {
		return IdempotencyBeginResult{}, err
	}

	var existing domain.IdempotencyRecord
	if err := s.db.WithContext(ctx).
		Where("scope = ? AND idempotency_key = ?", scope, key).
		First(&existing).Error; err != nil {
		return IdempotencyBeginResult{}, err
	}

	// An expired claim can be retaken: reset it in place, guarded by the
	// previous state so concurrent retakers cannot both win.
	if now.After(existing.ExpiresAt) {
		res := s.db.WithContext(ctx).Model(&domain.IdempotencyRecord{}).
			Where("id = ? AND expires_at = ?", existing.ID, existing.ExpiresAt).
			Updates(map[string]any{
				"fingerprint_hash": fingerprint,
				"status":           idempotencyStatusNew,
				"response_status":  0,
				"response_body":    []byte(nil),
				"content_type":     "",
				"expires_at":       now.Add(ttl),
			})
		if res.Error != nil {
			return IdempotencyBeginResult{}, res.Error
		}
		if res.RowsAffected == 1 {
			return IdempotencyBeginResult{State: IdempotencyStateNew}, nil
		}
		return IdempotencyBeginResult{State: IdempotencyStateInProgress}, nil
	}

	if existing.FingerprintHash != fingerprint {
		return IdempotencyBeginResult{State: IdempotencyStateConflict}, nil
	}
	if existing.Status == idempotencyStatusCompleted {
		return IdempotencyBeginResult{
			State: IdempotencyStateReplay,
			Cached: &CachedResponse{
				StatusCode:  existing.ResponseStatus,
				ContentType: existing.ContentType,
				Body:        existing.ResponseBody,
			},
		}, nil
	}
	return IdempotencyBeginResult{State: IdempotencyStateInProgress}, nil
}

func (s *DBIdempotencyStore) Complete(ctx context.Context, scope, key, fingerprint string, response CachedResponse, ttl time.Duration) error {
	res := s.db.WithContext(ctx).Model(&domain.IdempotencyRecord{}).
		Where("scope = ? AND idempotency_key = ? AND fingerprint_hash = ?", scope, key, fingerprint).
		Updates(map[string]any{
			"status":          idempotencyStatusCompleted,
			"response_status": response.StatusCode,
			"response_body":   response.Body,
			"content_type":    response.ContentType,
			"expires_at":      time.Now().UTC().Add(ttl),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("idempotency record missing on complete")
	}
	return nil
}

// Abort deletes an unfinished claim owned by fingerprint. Completed rows
// stay so replays keep serving the cached outcome.
func (s *DBIdempotencyStore) Abort(ctx context.Context, scope, key, fingerprint string) error {
	return s.db.WithContext(ctx).
		Where("scope = ? AND idempotency_key = ? AND fingerprint_hash = ? AND status <> ?",
			scope, key, fingerprint, idempotencyStatusCompleted).
		Delete(&domain.IdempotencyRecord{}).Error
}

func (s *DBIdempotencyStore) CleanupExpired(ctx context.Context, now time.Time, batch int) (int64, error) {
	if batch <= 0 {
		batch = 500
	}
	var ids []uint
	err := s.db.WithContext(ctx).Model(&domain.IdempotencyRecord{}).
		Where("expires_at <= ?", now).
		Order("id ASC").Limit(batch).Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Delete(&domain.IdempotencyRecord{}, ids)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(strings.ToLower(err.Error()), "unique")
}
