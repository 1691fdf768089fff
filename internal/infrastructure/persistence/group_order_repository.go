package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormGroupOrderRepository implements grouporder.GroupRepository using GORM
type GormGroupOrderRepository struct {
	db *gorm.DB
}

// NewGormGroupOrderRepository creates a new GormGroupOrderRepository
func NewGormGroupOrderRepository(db *gorm.DB) *GormGroupOrderRepository {
	return &GormGroupOrderRepository{db: db}
}

func preloadChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, id ASC")
		}).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		})
}

// FindByID loads a group with members and items. Deleted groups are not found.
func (r *GormGroupOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*grouporder.Group, error) {
	var model models.GroupOrderModel
	if err := preloadChildren(r.db.WithContext(ctx)).
		Where("id = ? AND status <> ?", id, grouporder.GroupStatusDeleted).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, grouporder.ErrGroupNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByItemID loads the group that owns the item
func (r *GormGroupOrderRepository) FindByItemID(ctx context.Context, itemID uuid.UUID) (*grouporder.Group, error) {
	var item models.GroupOrderItemModel
	if err := r.db.WithContext(ctx).
		Select("group_id").
		Where("id = ?", itemID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, grouporder.ErrItemNotFound
		}
		return nil, err
	}
	return r.FindByID(ctx, item.GroupID)
}

// FindByUser lists groups where the user holds an active membership, newest first unless filter says otherwise
func (r *GormGroupOrderRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter grouporder.ListFilter) ([]grouporder.Group, int64, error) {
	scope := func() *gorm.DB {
		memberships := r.db.Model(&models.GroupOrderMemberModel{}).
			Select("group_id").
			Where("user_id = ? AND status <> ?", userID, grouporder.MemberStatusLeft)
		q := r.db.WithContext(ctx).Model(&models.GroupOrderModel{}).
			Where("id IN (?)", memberships).
			Where("status <> ?", grouporder.GroupStatusDeleted)
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.GroupOrderModel
	if err := preloadChildren(scope()).
		Order(groupOrderClause(filter.SortBy, filter.SortOrder)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	groups := make([]grouporder.Group, len(rows))
	for i := range rows {
		groups[i] = *rows[i].ToDomain()
	}
	return groups, total, nil
}

// FindExpirable returns ids of open or locked groups whose deadline passed, oldest deadline first
func (r *GormGroupOrderRepository) FindExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.GroupOrderModel{}).
		Where("status IN ?", []grouporder.GroupStatus{grouporder.GroupStatusOpen, grouporder.GroupStatusLocked}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindStaleCheckouts returns ids of groups stuck in checking_out since before startedBefore
func (r *GormGroupOrderRepository) FindStaleCheckouts(ctx context.Context, startedBefore time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.GroupOrderModel{}).
		Where("status = ?", grouporder.GroupStatusCheckingOut).
		Where("(checkout_started_at IS NULL OR checkout_started_at < ?)", startedBefore).
		Order("checkout_started_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Save inserts a new group or updates an existing one under optimistic locking.
// Members and items are upserted; items missing from the aggregate are deleted.
func (r *GormGroupOrderRepository) Save(ctx context.Context, g *grouporder.Group) error {
	var newVersion int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.GroupOrderModel{}).Where("id = ?", g.ID).Count(&existing).Error; err != nil {
			return err
		}

		model := models.GroupOrderModelFromDomain(g)
		if existing == 0 {
			newVersion = g.Version
			if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
				return err
			}
		} else {
			newVersion = g.Version + 1
			result := tx.Model(&models.GroupOrderModel{}).
				Where("id = ? AND version = ?", g.ID, g.Version).
				Updates(map[string]any{
					"name":                model.Name,
					"status":              model.Status,
					"delivery_mode":       model.DeliveryMode,
					"discount_percent":    model.DiscountPercent,
					"expires_at":          model.ExpiresAt,
					"max_members":         model.MaxMembers,
					"checkout_started_at": model.CheckoutStartedAt,
					"host_member_id":      model.HostMemberID,
					"version":             newVersion,
					"updated_at":          model.UpdatedAt,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return grouporder.ErrConcurrentModification
			}
		}

		return saveChildren(tx, g)
	})
	if err != nil {
		return err
	}
	g.Version = newVersion
	return nil
}

func saveChildren(tx *gorm.DB, g *grouporder.Group) error {
	if len(g.Members) > 0 {
		members := make([]models.GroupOrderMemberModel, len(g.Members))
		for i, m := range g.Members {
			members[i] = models.GroupOrderMemberModelFromDomain(m)
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&members).Error; err != nil {
			return err
		}
	}

	keep := make([]uuid.UUID, len(g.Items))
	for i, it := range g.Items {
		keep[i] = it.ID
	}
	stale := tx.Where("group_id = ?", g.ID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := stale.Delete(&models.GroupOrderItemModel{}).Error; err != nil {
		return err
	}

	if len(g.Items) > 0 {
		items := make([]models.GroupOrderItemModel, len(g.Items))
		for i, it := range g.Items {
			items[i] = models.GroupOrderItemModelFromDomain(it)
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&items).Error; err != nil {
			return err
		}
	}
	return nil
}
