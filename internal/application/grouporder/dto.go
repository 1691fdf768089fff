package grouporder

import (
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/shopspring/decimal"
)

// ==================== Requests ====================

// CreateGroupRequest represents a request to open a group order
type CreateGroupRequest struct {
	StoreID       uuid.UUID                 `json:"store_id" binding:"required"`
	Name          string                    `json:"name" binding:"required,min=1,max=200"`
	DeliveryMode  grouporder.DeliveryMode   `json:"delivery_mode" binding:"omitempty,delivery_mode"`
	ExpiresAt     *time.Time                `json:"expires_at"`
	MaxMembers    int                       `json:"max_members" binding:"min=0,max=500"`
	HostAddressID *uuid.UUID                `json:"host_address_id"`
	DiscountTiers []grouporder.DiscountTier `json:"discount_tiers"`
}

// UpdateGroupRequest carries host-level changes. Nil fields are left unchanged.
type UpdateGroupRequest struct {
	Name          *string                  `json:"name" binding:"omitempty,min=1,max=200"`
	ExpiresAt     *time.Time               `json:"expires_at"`
	ClearDeadline bool                     `json:"clear_deadline"`
	DeliveryMode  *grouporder.DeliveryMode `json:"delivery_mode" binding:"omitempty,delivery_mode"`
}

// AddMemberRequest lets the host add a user directly
type AddMemberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// SetAddressRequest sets the caller's delivery address
type SetAddressRequest struct {
	AddressID uuid.UUID `json:"address_id" binding:"required"`
}

// AddItemRequest adds an item to the shared cart.
// UnitPrice is the list price before the group discount and is only used
// when no catalog is configured.
type AddItemRequest struct {
	ProductID  uuid.UUID        `json:"product_id" binding:"required"`
	VariantID  *uuid.UUID       `json:"variant_id"`
	Quantity   int              `json:"quantity" binding:"required,min=1"`
	Note       string           `json:"note" binding:"max=500"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
	UnitWeight int              `json:"unit_weight" binding:"min=0"`
}

// UpdateItemRequest edits quantity or note of an item
type UpdateItemRequest struct {
	Quantity *int    `json:"quantity" binding:"omitempty,min=1"`
	Note     *string `json:"note" binding:"omitempty,max=500"`
}

// CheckoutRequest starts checkout of the whole cart
type CheckoutRequest struct {
	PaymentMethodRef string     `json:"payment_method_ref" binding:"required,max=200"`
	HostAddressID    *uuid.UUID `json:"host_address_id"`
	IdempotencyKey   string     `json:"-"`
}

// ListGroupsFilter filters the caller's groups
type ListGroupsFilter struct {
	Status    string `form:"status" binding:"omitempty,oneof=open locked checking_out expired closed"`
	SortBy    string `form:"sort_by" binding:"omitempty,oneof=created_at updated_at expires_at name status"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ==================== Responses ====================

// GroupResponse is the full group view with totals
type GroupResponse struct {
	grouporder.GroupSnapshot
}

// GroupListItemResponse is the compact view used in lists
type GroupListItemResponse struct {
	ID              uuid.UUID               `json:"id"`
	StoreID         uuid.UUID               `json:"store_id"`
	Name            string                  `json:"name"`
	Status          grouporder.GroupStatus  `json:"status"`
	DeliveryMode    grouporder.DeliveryMode `json:"delivery_mode"`
	IsHost          bool                    `json:"is_host"`
	ActiveMembers   int                     `json:"active_members"`
	ItemCount       int                     `json:"item_count"`
	DiscountPercent int32                   `json:"discount_percent"`
	TotalAfter      decimal.Decimal         `json:"total_after"`
	ExpiresAt       *time.Time              `json:"expires_at,omitempty"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// MemberResponse represents a membership
type MemberResponse struct {
	grouporder.MemberView
}

// ItemResponse represents a cart item
type ItemResponse struct {
	grouporder.ItemView
}

// CheckoutResponse is the checkout result handed back to the caller.
// RedirectURL is the first payment redirect; RedirectURLs lists all of them.
type CheckoutResponse struct {
	OrderIDs     []uuid.UUID `json:"order_ids"`
	OrderNumbers []string    `json:"order_numbers"`
	OrderCount   int         `json:"order_count"`
	RedirectURL  string      `json:"redirect_url,omitempty"`
	RedirectURLs []string    `json:"redirect_urls,omitempty"`
}

// ToGroupResponse converts the aggregate to its response
func ToGroupResponse(g *grouporder.Group) GroupResponse {
	return GroupResponse{GroupSnapshot: g.Snapshot()}
}

// ToGroupListItemResponse converts the aggregate to its list entry for a viewer
func ToGroupListItemResponse(g *grouporder.Group, viewer uuid.UUID) GroupListItemResponse {
	return GroupListItemResponse{
		ID:              g.ID,
		StoreID:         g.StoreID,
		Name:            g.Name,
		Status:          g.Status,
		DeliveryMode:    g.DeliveryMode,
		IsHost:          g.IsHost(viewer),
		ActiveMembers:   g.ActiveMemberCount(),
		ItemCount:       len(g.Items),
		DiscountPercent: g.DiscountPercent,
		TotalAfter:      g.Totals().TotalAfter,
		ExpiresAt:       g.ExpiresAt,
		UpdatedAt:       g.UpdatedAt,
	}
}

// ToMemberResponses converts members to responses
func ToMemberResponses(members []grouporder.Member) []MemberResponse {
	out := make([]MemberResponse, 0, len(members))
	for i := range members {
		out = append(out, MemberResponse{MemberView: members[i].View()})
	}
	return out
}

// ToItemResponses converts items to responses priced at the group's discount
func ToItemResponses(g *grouporder.Group, items []grouporder.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for i := range items {
		out = append(out, ItemResponse{ItemView: g.ItemView(&items[i])})
	}
	return out
}
