package grouporder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter selects groups for listing
type ListFilter struct {
	Status    GroupStatus
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// Offset returns the row offset for the page
func (f ListFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}

// Limit returns the page size, defaulting to 20 and capped at 100
func (f ListFilter) Limit() int {
	switch {
	case f.PageSize <= 0:
		return 20
	case f.PageSize > 100:
		return 100
	}
	return f.PageSize
}

// GroupRepository persists the Group aggregate with its members and items
type GroupRepository interface {
	// FindByID loads a group. Deleted groups are reported as ErrGroupNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*Group, error)

	// FindByItemID loads the group that owns the item
	FindByItemID(ctx context.Context, itemID uuid.UUID) (*Group, error)

	// FindByUser lists groups where the user holds an active membership
	FindByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]Group, int64, error)

	// FindExpirable returns ids of open or locked groups whose deadline passed before now
	FindExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// FindStaleCheckouts returns ids of groups still checking_out from an
	// attempt that began before startedBefore
	FindStaleCheckouts(ctx context.Context, startedBefore time.Time, limit int) ([]uuid.UUID, error)

	// Save inserts or updates the aggregate. Updates are guarded by Version and
	// return ErrConcurrentModification when the stored version moved on.
	Save(ctx context.Context, g *Group) error
}
