package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/coldpilot/billing/internal/models"
	types "github.com/coldpilot/billing/pkg/types"

	"gorm.io/gorm"
)

// ActionRepository persists the append-only subscription action journal.
type ActionRepository struct {
	db *gorm.DB
}

func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

func (r *ActionRepository) Create(ctx context.Context, action *models.SubscriptionAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

func (r *ActionRepository) GetByID(ctx context.Context, id string) (*models.SubscriptionAction, error) {
	var action models.SubscriptionAction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&action).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("action %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &action, nil
}

func (r *ActionRepository) Save(ctx context.Context, action *models.SubscriptionAction) error {
	return r.db.WithContext(ctx).Save(action).Error
}

func (r *ActionRepository) PendingBySubscription(ctx context.Context, subscriptionID string) (*models.SubscriptionAction, error) {
	var action models.SubscriptionAction
	err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND status = ?", subscriptionID, types.ActionStatusPending).
		First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &action, nil
}

func (r *ActionRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*models.SubscriptionAction, error) {
	var actions []*models.SubscriptionAction
	if err := r.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).Order("created_at desc").Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}
