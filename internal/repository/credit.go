package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/coldpilot/billing/internal/models"

	"gorm.io/gorm"
)

// CreditRepository persists account credits with GORM.
type CreditRepository struct {
	db *gorm.DB
}

func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) Create(ctx context.Context, credit *models.Credit) error {
	return r.db.WithContext(ctx).Create(credit).Error
}

func (r *CreditRepository) GetByID(ctx context.Context, id string) (*models.Credit, error) {
	var credit models.Credit
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&credit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("credit %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &credit, nil
}

func (r *CreditRepository) Save(ctx context.Context, credit *models.Credit) error {
	return r.db.WithContext(ctx).Save(credit).Error
}

func (r *CreditRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*models.Credit, error) {
	var credits []*models.Credit
	if err := r.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).Order("created_at asc").Find(&credits).Error; err != nil {
		return nil, err
	}
	return credits, nil
}
