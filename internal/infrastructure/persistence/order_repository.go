package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderWriter implements grouporder.OrderWriter using GORM
type GormOrderWriter struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormOrderWriter creates a new GormOrderWriter
func NewGormOrderWriter(db *gorm.DB) *GormOrderWriter {
	return &GormOrderWriter{db: db, now: time.Now}
}

// CreateOrder persists one order with its lines in a single transaction
func (w *GormOrderWriter) CreateOrder(ctx context.Context, params grouporder.OrderParams) (grouporder.OrderRef, error) {
	now := w.now()
	id := uuid.New()
	number := orderNumber(now, id)

	model := models.OrderModelFromParams(id, number, params, now)
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		return grouporder.OrderRef{}, fmt.Errorf("create order: %w", err)
	}
	return grouporder.OrderRef{ID: id, Number: number}, nil
}

// AttachPaymentIntent records the gateway's intent id on the order
func (w *GormOrderWriter) AttachPaymentIntent(ctx context.Context, ref grouporder.OrderRef, intentID string) error {
	result := w.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ?", ref.ID).
		Updates(map[string]any{
			"payment_intent_id": intentID,
			"updated_at":        w.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("attach payment intent to %s: %w", ref.Number, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("attach payment intent to %s: %w", ref.Number, gorm.ErrRecordNotFound)
	}
	return nil
}

// DiscardOrder deletes the order and its lines
func (w *GormOrderWriter) DiscardOrder(ctx context.Context, ref grouporder.OrderRef) error {
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteOrders(tx, []uuid.UUID{ref.ID})
	})
	if err != nil {
		return fmt.Errorf("discard order %s: %w", ref.Number, err)
	}
	return nil
}

// DiscardGroupOrders deletes every order of the group, lines included, in one transaction
func (w *GormOrderWriter) DiscardGroupOrders(ctx context.Context, groupID uuid.UUID) ([]grouporder.DiscardedOrder, error) {
	var discarded []grouporder.DiscardedOrder
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.OrderModel
		if err := tx.Select("id", "order_number", "payment_intent_id").
			Where("group_id = ?", groupID).
			Order("created_at ASC, order_number ASC").
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, len(rows))
		discarded = make([]grouporder.DiscardedOrder, len(rows))
		for i, row := range rows {
			ids[i] = row.ID
			discarded[i] = grouporder.DiscardedOrder{
				Ref:             grouporder.OrderRef{ID: row.ID, Number: row.OrderNumber},
				PaymentIntentID: row.PaymentIntentID,
			}
		}
		return deleteOrders(tx, ids)
	})
	if err != nil {
		return nil, fmt.Errorf("discard orders of group %s: %w", groupID, err)
	}
	return discarded, nil
}

// deleteOrders removes lines before their orders; sqlite does not enforce
// the cascade unless foreign keys are switched on
func deleteOrders(tx *gorm.DB, ids []uuid.UUID) error {
	if err := tx.Where("order_id IN ?", ids).Delete(&models.OrderItemModel{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.OrderModel{}).Error
}

// FindByGroup returns the orders a checkout produced for a group
func (w *GormOrderWriter) FindByGroup(ctx context.Context, groupID uuid.UUID) ([]models.OrderModel, error) {
	var orders []models.OrderModel
	err := w.db.WithContext(ctx).
		Preload("Items").
		Where("group_id = ?", groupID).
		Order("created_at ASC, order_number ASC").
		Find(&orders).Error
	return orders, err
}

// orderNumber formats GB<yyyymmdd><8 hex> which sorts by day and stays unique per id
func orderNumber(now time.Time, id uuid.UUID) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
	return "GB" + now.UTC().Format("20060102") + suffix
}
