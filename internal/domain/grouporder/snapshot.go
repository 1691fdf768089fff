package grouporder

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemberView is the client-facing form of a member
type MemberView struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	DisplayName string       `json:"display_name"`
	IsHost      bool         `json:"is_host"`
	Status      MemberStatus `json:"status"`
	AddressID   *uuid.UUID   `json:"address_id,omitempty"`
	JoinedAt    time.Time    `json:"joined_at"`
}

// ItemView is the client-facing form of an item, priced for display
type ItemView struct {
	ID            uuid.UUID       `json:"id"`
	MemberID      uuid.UUID       `json:"member_id"`
	OwnerUserID   uuid.UUID       `json:"owner_user_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	VariantID     *uuid.UUID      `json:"variant_id,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	PreGroupPrice decimal.Decimal `json:"pre_group_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
	Note          string          `json:"note,omitempty"`
	Position      int             `json:"position"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MemberTotals summarizes one member's share of the cart
type MemberTotals struct {
	MemberID  uuid.UUID `json:"member_id"`
	ItemCount int       `json:"item_count"`
	Totals
}

// GroupSnapshot is the full authoritative state of a group, as sent in group-state events
type GroupSnapshot struct {
	ID              uuid.UUID      `json:"id"`
	StoreID         uuid.UUID      `json:"store_id"`
	HostUserID      uuid.UUID      `json:"host_user_id"`
	HostMemberID    uuid.UUID      `json:"host_member_id"`
	Name            string         `json:"name"`
	Status          GroupStatus    `json:"status"`
	DeliveryMode    DeliveryMode   `json:"delivery_mode"`
	DiscountPercent int32          `json:"discount_percent"`
	DiscountTiers   []DiscountTier `json:"discount_tiers"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
	MaxMembers      int            `json:"max_members"`
	Members         []MemberView   `json:"members"`
	Items           []ItemView     `json:"items"`
	Totals          Totals         `json:"totals"`
	MemberTotals    []MemberTotals `json:"member_totals"`
	Version         int            `json:"version"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func toMemberView(m *Member) MemberView {
	return MemberView{
		ID:          m.ID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		IsHost:      m.IsHost,
		Status:      m.Status,
		AddressID:   m.AddressID,
		JoinedAt:    m.JoinedAt,
	}
}

// View returns the client-facing form of the member
func (m *Member) View() MemberView {
	return toMemberView(m)
}

// ItemViews lists the cart in insertion order, priced for display
func (g *Group) ItemViews() []ItemView {
	items := g.ListItems()
	views := make([]ItemView, 0, len(items))
	for i := range items {
		views = append(views, g.ItemView(&items[i]))
	}
	return views
}

// ItemView prices an item for display at the group's current discount
func (g *Group) ItemView(it *Item) ItemView {
	v := ItemView{
		ID:            it.ID,
		MemberID:      it.MemberID,
		ProductID:     it.ProductID,
		VariantID:     it.VariantID,
		Quantity:      it.Quantity,
		UnitPrice:     it.UnitPrice,
		PreGroupPrice: PreGroupPrice(it.UnitPrice, g.DiscountPercent),
		LineTotal:     it.LineTotal(),
		Note:          it.Note,
		Position:      it.Position,
		CreatedAt:     it.CreatedAt,
	}
	if owner := g.memberByID(it.MemberID); owner != nil {
		v.OwnerUserID = owner.UserID
	}
	return v
}

// Snapshot returns the full client-facing state of the group.
// Only active members are listed; items keep insertion order.
func (g *Group) Snapshot() GroupSnapshot {
	s := GroupSnapshot{
		ID:              g.ID,
		StoreID:         g.StoreID,
		HostUserID:      g.HostUserID,
		HostMemberID:    g.HostMemberID,
		Name:            g.Name,
		Status:          g.Status,
		DeliveryMode:    g.DeliveryMode,
		DiscountPercent: g.DiscountPercent,
		DiscountTiers:   append([]DiscountTier(nil), g.DiscountPolicy.Tiers...),
		ExpiresAt:       g.ExpiresAt,
		MaxMembers:      g.MaxMembers,
		Members:         make([]MemberView, 0, len(g.Members)),
		Items:           make([]ItemView, 0, len(g.Items)),
		MemberTotals:    make([]MemberTotals, 0),
		Version:         g.Version,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
	}

	for i := range g.Members {
		if g.Members[i].IsActive() {
			s.Members = append(s.Members, toMemberView(&g.Members[i]))
		}
	}
	s.Items = append(s.Items, g.ItemViews()...)
	s.Totals = ComputeTotals(g.Items, g.DiscountPercent)

	for _, m := range s.Members {
		owned := g.ItemsOf(m.ID)
		if len(owned) == 0 {
			continue
		}
		s.MemberTotals = append(s.MemberTotals, MemberTotals{
			MemberID:  m.ID,
			ItemCount: len(owned),
			Totals:    ComputeTotals(owned, g.DiscountPercent),
		})
	}
	return s
}
