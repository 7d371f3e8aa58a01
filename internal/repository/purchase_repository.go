package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go-report-access-service/internal/domain"
	"go-report-access-service/internal/observability"
)

var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrPurchaseExists   = errors.New("purchase already recorded")
)

type PurchaseRepository interface {
	// Create inserts a purchase row; the unique index on the payment
	// session id turns a duplicate insert into ErrPurchaseExists.
	Create(ctx context.Context, purchase *domain.Purchase) error
	FindBySessionID(ctx context.Context, sessionID string) (*domain.Purchase, error)
}

type GormPurchaseRepository struct{ db *gorm.DB }

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &GormPurchaseRepository{db: db}
}

func (r *GormPurchaseRepository) Create(ctx context.Context, purchase *domain.Purchase) error {
	if err := r.db.WithContext(ctx).Create(purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			observability.RecordRepositoryOperation(ctx, "purchase", "create", "conflict")
			return ErrPurchaseExists
		}
		observability.RecordRepositoryOperation(ctx, "purchase", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "purchase", "create", "success")
	return nil
}

func (r *GormPurchaseRepository) FindBySessionID(ctx context.Context, sessionID string) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := r.db.WithContext(ctx).Where("payment_session_id = ?", sessionID).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "purchase", "find_by_session", "not_found")
			return nil, ErrPurchaseNotFound
		}
		observability.RecordRepositoryOperation(ctx, "purchase", "find_by_session", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "purchase", "find_by_session", "success")
	return &purchase, nil
}
