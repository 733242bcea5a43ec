package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/coldpilot/billing/internal/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// SubscriptionRepository persists subscriptions and their audit log with GORM.
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *SubscriptionRepository) SaveLog(log *models.SubscriptionLog) error {
	return r.db.Save(log).Error
}
