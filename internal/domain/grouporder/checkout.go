package grouporder

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderDraft is one order the checkout will create
type OrderDraft struct {
	MemberID    uuid.UUID // owner of the address; the host in host_address mode
	BuyerUserID uuid.UUID
	AddressID   uuid.UUID
	Items       []Item
	Totals      Totals
	WeightGrams int
}

// CheckoutPlan is the frozen cart split into order drafts by delivery mode
type CheckoutPlan struct {
	GroupID         uuid.UUID
	StoreID         uuid.UUID
	HostUserID      uuid.UUID
	DeliveryMode    DeliveryMode
	DiscountPercent int32
	Drafts          []OrderDraft
}

// ItemCount returns the number of items across all drafts
func (p *CheckoutPlan) ItemCount() int {
	n := 0
	for _, d := range p.Drafts {
		n += len(d.Items)
	}
	return n
}

// PrepareCheckout checks the checkout preconditions and splits the cart.
// hostAddressID overrides the host member's stored address in host_address mode.
// Every failure is CHECKOUT_BLOCKED with a reason naming the unmet condition.
func (g *Group) PrepareCheckout(actorUserID uuid.UUID, hostAddressID *uuid.UUID) (*CheckoutPlan, error) {
	if !g.IsHost(actorUserID) {
		return nil, NewCheckoutBlockedError(ReasonNotHost, "only the host can check out")
	}
	if g.Status != GroupStatusOpen {
		return nil, NewCheckoutBlockedError(ReasonGroupNotOpen,
			fmt.Sprintf("group is %s", g.Status)).WithDetail("status", g.Status.String())
	}
	if len(g.Items) == 0 {
		return nil, NewCheckoutBlockedError(ReasonEmptyCart, "the cart has no items")
	}

	plan := &CheckoutPlan{
		GroupID:         g.ID,
		StoreID:         g.StoreID,
		HostUserID:      g.HostUserID,
		DeliveryMode:    g.DeliveryMode,
		DiscountPercent: g.DiscountPercent,
	}

	switch g.DeliveryMode {
	case DeliveryModeHostAddress:
		host := g.HostMember()
		if host == nil {
			return nil, ErrMemberNotFound
		}
		addressID := host.AddressID
		if hostAddressID != nil && *hostAddressID != uuid.Nil {
			addressID = hostAddressID
		}
		if addressID == nil || *addressID == uuid.Nil {
			return nil, NewAddressMissingError(host)
		}
		plan.Drafts = append(plan.Drafts, g.draft(host, *addressID, g.ListItems()))

	case DeliveryModeMemberAddress:
		for i := range g.Members {
			m := &g.Members[i]
			if !m.IsActive() {
				continue
			}
			owned := g.ItemsOf(m.ID)
			if len(owned) == 0 {
				continue
			}
			if !m.HasAddress() {
				return nil, NewAddressMissingError(m)
			}
			plan.Drafts = append(plan.Drafts, g.draft(m, *m.AddressID, owned))
		}

	default:
		return nil, ErrInvalidDeliveryMode
	}

	return plan, nil
}

func (g *Group) draft(m *Member, addressID uuid.UUID, items []Item) OrderDraft {
	weight := 0
	for i := range items {
		weight += items[i].Weight()
	}
	return OrderDraft{
		MemberID:    m.ID,
		BuyerUserID: m.UserID,
		AddressID:   addressID,
		Items:       items,
		Totals:      ComputeTotals(items, g.DiscountPercent),
		WeightGrams: weight,
	}
}

// BeginCheckout moves the group into the transient checking_out state.
// No event is raised; other writers see the status and back off.
func (g *Group) BeginCheckout() error {
	if !g.Status.CanTransitionTo(GroupStatusCheckingOut) {
		return g.invalidTransition(GroupStatusCheckingOut)
	}
	now := time.Now()
	g.Status = GroupStatusCheckingOut
	g.CheckoutStartedAt = &now
	g.Touch(now)
	return nil
}

// CompleteCheckout closes the group after every order was created
func (g *Group) CompleteCheckout(plan *CheckoutPlan, orderIDs []uuid.UUID) error {
	if g.Status != GroupStatusCheckingOut {
		return g.invalidTransition(GroupStatusClosed)
	}

	now := time.Now()
	ordered := make(map[uuid.UUID]bool, len(plan.Drafts))
	for _, d := range plan.Drafts {
		for _, it := range d.Items {
			ordered[it.MemberID] = true
		}
	}
	for i := range g.Members {
		m := &g.Members[i]
		if m.IsActive() && ordered[m.ID] {
			m.Status = MemberStatusOrdered
			m.UpdatedAt = now
		}
	}

	g.Status = GroupStatusClosed
	g.CheckoutStartedAt = nil
	g.Touch(now)

	evt := NewGroupUpdatedEvent(g, ChangeCheckedOut)
	evt.OrderIDs = orderIDs
	g.AddDomainEvent(evt)
	return nil
}

// AbortCheckout returns a checking_out group to open
func (g *Group) AbortCheckout() {
	if g.Status != GroupStatusCheckingOut {
		return
	}
	g.Status = GroupStatusOpen
	g.CheckoutStartedAt = nil
	g.Touch(time.Now())
}

// CheckoutStale reports whether a checkout began more than timeout before now
// and never finished, which happens when the process died mid-attempt
func (g *Group) CheckoutStale(now time.Time, timeout time.Duration) bool {
	if g.Status != GroupStatusCheckingOut {
		return false
	}
	if g.CheckoutStartedAt == nil {
		return true
	}
	return !now.Before(g.CheckoutStartedAt.Add(timeout))
}

// RecoverCheckout reopens a group whose checkout was abandoned. Unlike
// AbortCheckout the status change is announced, since clients saw nothing
// of the attempt that began it.
func (g *Group) RecoverCheckout() bool {
	if g.Status != GroupStatusCheckingOut {
		return false
	}
	g.AbortCheckout()
	g.AddDomainEvent(NewGroupUpdatedEvent(g, ChangeCheckoutAborted))
	return true
}
