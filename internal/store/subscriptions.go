package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foyer-backend/internal/model"
)

// SubscriptionsForBloc returns every push subscription watching the bloc.
func (s *gormStore) SubscriptionsForBloc(ctx context.Context, blocID int64) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_blocs sb ON sb.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sb.bloc_id = ?", blocID).
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("subscriptions for bloc %d: %w", blocID, err)
	}
	return subscriptions, nil
}

// GetSubscription loads a subscription and the blocs it watches.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var subscription model.PushSubscription
	if err := s.db.WithContext(ctx).Preload("Blocs").First(&subscription, "endpoint = ?", endpoint).Error; err != nil {
		return nil, fmt.Errorf("get subscription: %w", translate(err))
	}
	return &subscription, nil
}

// SaveSubscription creates or replaces a subscription and its watched blocs.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription, blocIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error; err != nil {
			return err
		}

		var blocs []*model.Bloc
		if len(blocIDs) > 0 {
			if err := tx.Find(&blocs, blocIDs).Error; err != nil {
				return err
			}
		}

		association := tx.Model(sub).Association("Blocs")
		if len(blocs) == 0 {
			return association.Clear()
		}
		return association.Replace(blocs)
	})
}

// DeleteSubscription removes a subscription and its bloc mappings.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Select("Blocs").Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}
