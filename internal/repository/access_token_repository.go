package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"go-report-access-service/internal/domain"
	"go-report-access-service/internal/observability"
)

var ErrAccessTokenNotFound = errors.New("access token not found")

type AccessTokenRepository interface {
	Create(ctx context.Context, token *domain.AccessToken) error
	FindByToken(ctx context.Context, token string) (*domain.AccessToken, error)
	// Consume flips used false->true iff the token is still unused and
	// unexpired at instant now. Already-used, expired, and unknown
	// tokens all surface as ErrAccessTokenNotFound.
	Consume(ctx context.Context, token string, now time.Time) error
	CleanupExpired(ctx context.Context, now time.Time, batch int) (int64, error)
}

type GormAccessTokenRepository struct{ db *gorm.DB }

func NewAccessTokenRepository(db *gorm.DB) AccessTokenRepository {
	return &GormAccessTokenRepository{db: db}
}

func (r *GormAccessTokenRepository) Create(ctx context.Context, token *domain.AccessToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "access_token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "access_token", "create", "success")
	return nil
}

func (r *GormAccessTokenRepository) FindByToken(ctx context.Context, token string) (*domain.AccessToken, error) {
	var row domain.AccessToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "access_token", "find_by_token", "not_found")
			return nil, ErrAccessTokenNotFound
		}
		observability.RecordRepositoryOperation(ctx, "access_token", "find_by_token", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "access_token", "find_by_token", "success")
	return &row, nil
}

// Consume is a single conditional UPDATE; the validity predicate lives in
// the WHERE clause so two concurrent callers can never both succeed. A
// zero affected-row count means the precondition failed.
func (r *GormAccessTokenRepository) Consume(ctx context.Context, token string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.AccessToken{}).
		Where("token = ? AND used = ? AND expires_at > ?", token, false, now).
		Updates(map[string]any{"used": true, "used_at": now})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "access_token", "consume", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "access_token", "consume", "not_found")
		return ErrAccessTokenNotFound
	}
	observability.RecordRepositoryOperation(ctx, "access_token", "consume", "success")
	return nil
}

func (r *GormAccessTokenRepository) CleanupExpired(ctx context.Context, now time.Time, batch int) (int64, error) {
	if batch <= 0 {
		batch = 500
	}
	var ids []uint
	err := r.db.WithContext(ctx).Model(&domain.AccessToken{}).
		Where("expires_at <= ?", now).
		Order("id ASC").Limit(batch).Pluck("id", &ids).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "access_token", "cleanup", "error")
		return 0, err
	}
	if len(ids) == 0 {
		observability.RecordRepositoryOperation(ctx, "access_token", "cleanup", "success")
		return 0, nil
	}
	res := r.db.WithContext(ctx).Delete(&domain.AccessToken{}, ids)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "access_token", "cleanup", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "access_token", "cleanup", "success")
	return res.RowsAffected, nil
}
