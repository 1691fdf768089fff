package grouporder

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/shared"
)

// MaxNameLength bounds the group display name
const MaxNameLength = 200

// Group is the aggregate root of a shared cart for one store.
// Members and Items are child collections; every mutation goes through the
// aggregate so membership, ownership and lifecycle rules hold together.
// Members who left stay in Members with status left.
type Group struct {
	shared.BaseAggregateRoot
	StoreID         uuid.UUID
	HostUserID      uuid.UUID
	HostMemberID    uuid.UUID
	Name            string
	Status          GroupStatus
	DeliveryMode    DeliveryMode
	DiscountPercent int32 // last computed output of DiscountPolicy
	DiscountPolicy  DiscountPolicy
	ExpiresAt       *time.Time // nil means no deadline
	MaxMembers      int        // 0 means unlimited
	// CheckoutStartedAt is set while the group is checking_out
	CheckoutStartedAt *time.Time
	Members           []Member
	Items             []Item
}

// NewGroupInput carries the values needed to open a group
type NewGroupInput struct {
	StoreID         uuid.UUID
	HostUserID      uuid.UUID
	HostDisplayName string
	HostAddressID   *uuid.UUID
	Name            string
	DeliveryMode    DeliveryMode
	ExpiresAt       *time.Time
	MaxMembers      int
	Policy          DiscountPolicy
}

// NewGroup creates an open group with the host as its first member
func NewGroup(in NewGroupInput) (*Group, error) {
	if in.StoreID == uuid.Nil {
		return nil, shared.NewDomainError(shared.KindValidation, "INVALID_STORE", "Store ID cannot be empty")
	}
	if in.HostUserID == uuid.Nil {
		return nil, shared.NewDomainError(shared.KindValidation, "INVALID_HOST", "Host user ID cannot be empty")
	}
	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	mode := in.DeliveryMode
	if mode == "" {
		mode = DeliveryModeHostAddress
	}
	if !mode.IsValid() {
		return nil, ErrInvalidDeliveryMode
	}
	now := time.Now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, ErrInvalidDeadline
	}
	if in.MaxMembers < 0 {
		return nil, ErrInvalidMaxMembers
	}
	policy := in.Policy
	if len(policy.Tiers) == 0 {
		policy = DefaultDiscountPolicy()
	}

	g := &Group{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		StoreID:           in.StoreID,
		HostUserID:        in.HostUserID,
		Name:              name,
		Status:            GroupStatusOpen,
		DeliveryMode:      mode,
		DiscountPolicy:    policy,
		ExpiresAt:         in.ExpiresAt,
		MaxMembers:        in.MaxMembers,
		Members:           make([]Member, 0, 4),
		Items:             make([]Item, 0),
	}

	host := newMember(g.ID, in.HostUserID, in.HostDisplayName, true, now)
	host.AddressID = in.HostAddressID
	g.Members = append(g.Members, host)
	g.HostMemberID = host.ID
	g.DiscountPercent = policy.Percent(g.ActiveMemberCount())

	g.AddDomainEvent(NewGroupCreatedEvent(g))

	return g, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// Membership

// Join adds the user as a regular member
func (g *Group) Join(userID uuid.UUID, displayName string) (*Member, error) {
	return g.addMember(userID, displayName, nil)
}

// AddMember lets the host add a user directly
func (g *Group) AddMember(actorUserID, userID uuid.UUID, displayName string) (*Member, error) {
	if err := g.requireHost(actorUserID); err != nil {
		return nil, err
	}
	return g.addMember(userID, displayName, &actorUserID)
}

func (g *Group) addMember(userID uuid.UUID, displayName string, addedBy *uuid.UUID) (*Member, error) {
	if err := g.requireOpen(); err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, ErrMemberNotFound
	}
	if g.activeMemberByUser(userID) != nil {
		return nil, ErrAlreadyMember
	}
	if g.MaxMembers > 0 && g.ActiveMemberCount() >= g.MaxMembers {
		return nil, ErrGroupFull.WithDetail("max_members", strconv.Itoa(g.MaxMembers))
	}

	now := time.Now()
	g.Members = append(g.Members, newMember(g.ID, userID, displayName, false, now))
	m := g.Members[len(g.Members)-1]
	g.Touch(now)

	g.AddDomainEvent(NewMemberJoinedEvent(g, &m, addedBy))
	g.recomputeDiscount()

	return &m, nil
}

// Leave marks the user's membership as left and drops the items they own.
// The host may only leave when nobody else is active; the group is then deleted.
func (g *Group) Leave(userID uuid.UUID) (*Member, error) {
	m := g.activeMemberByUser(userID)
	if m == nil {
		return nil, ErrNotAMember
	}
	if err := g.requireOpen(); err != nil {
		return nil, err
	}
	if m.IsHost {
		if g.ActiveMemberCount() > 1 {
			return nil, ErrHostCannotLeave
		}
		now := time.Now()
		g.removeItemsOf(m.ID)
		m.markLeft(now)
		left := *m
		g.Status = GroupStatusDeleted
		g.Touch(now)
		g.AddDomainEvent(NewGroupDeletedEvent(g, userID))
		return &left, nil
	}
	return g.dropMember(m, nil), nil
}

// RemoveMember lets the host remove another member
func (g *Group) RemoveMember(actorUserID, memberID uuid.UUID) (*Member, error) {
	if err := g.requireHost(actorUserID); err != nil {
		return nil, err
	}
	m := g.memberByID(memberID)
	if m == nil || !m.IsActive() {
		return nil, ErrMemberNotFound
	}
	if m.IsHost {
		return nil, ErrHostCannotBeRemoved
	}
	if err := g.requireOpen(); err != nil {
		return nil, err
	}
	return g.dropMember(m, &actorUserID), nil
}

func (g *Group) dropMember(m *Member, removedBy *uuid.UUID) *Member {
	now := time.Now()
	removed := g.removeItemsOf(m.ID)
	m.markLeft(now)
	left := *m
	g.Touch(now)

	g.AddDomainEvent(NewMemberLeftEvent(g, &left, removedBy, removed))
	g.recomputeDiscount()

	return &left
}

// SetMemberAddress records the delivery address of the user's membership.
// Address ownership is verified by the caller through the AddressBook.
func (g *Group) SetMemberAddress(userID, addressID uuid.UUID) (*Member, error) {
	if err := g.requireStatus(GroupStatusOpen, GroupStatusLocked); err != nil {
		return nil, err
	}
	m := g.activeMemberByUser(userID)
	if m == nil {
		return nil, ErrNotAMember
	}
	if g.DeliveryMode != DeliveryModeMemberAddress {
		return nil, ErrDeliveryModeMismatch
	}
	if addressID == uuid.Nil {
		return nil, ErrAddressNotFound
	}

	now := time.Now()
	m.AddressID = &addressID
	m.UpdatedAt = now
	g.Touch(now)

	g.AddDomainEvent(NewMemberAddressUpdatedEvent(g, m))

	updated := *m
	return &updated, nil
}

// ActiveMembers returns members whose status is not left, in join order
func (g *Group) ActiveMembers() []Member {
	active := make([]Member, 0, len(g.Members))
	for _, m := range g.Members {
		if m.IsActive() {
			active = append(active, m)
		}
	}
	return active
}

// ActiveMemberCount returns the number of distinct active members
func (g *Group) ActiveMemberCount() int {
	n := 0
	for i := range g.Members {
		if g.Members[i].IsActive() {
			n++
		}
	}
	return n
}

// HostMember returns the host's membership
func (g *Group) HostMember() *Member {
	return g.memberByID(g.HostMemberID)
}

// MemberByUser returns the active membership of a user, or nil
func (g *Group) MemberByUser(userID uuid.UUID) *Member {
	return g.activeMemberByUser(userID)
}

// IsHost reports whether the user is the group's host
func (g *Group) IsHost(userID uuid.UUID) bool {
	return g.HostUserID == userID
}

func (g *Group) memberByID(id uuid.UUID) *Member {
	for i := range g.Members {
		if g.Members[i].ID == id {
			return &g.Members[i]
		}
	}
	return nil
}

func (g *Group) activeMemberByUser(userID uuid.UUID) *Member {
	for i := range g.Members {
		if g.Members[i].UserID == userID && g.Members[i].IsActive() {
			return &g.Members[i]
		}
	}
	return nil
}

// Item ledger

// AddItem appends an item owned by the user's membership, priced from
// in.ListPrice at the current discount percent.
func (g *Group) AddItem(userID uuid.UUID, in NewItemInput) (*Item, error) {
	if err := g.requireOpen(); err != nil {
		return nil, err
	}
	m := g.activeMemberByUser(userID)
	if m == nil {
		return nil, ErrNotAMember
	}
	if err := validateItemInput(in); err != nil {
		return nil, err
	}

	now := time.Now()
	it := Item{
		ID:         uuid.New(),
		GroupID:    g.ID,
		MemberID:   m.ID,
		ProductID:  in.ProductID,
		VariantID:  in.VariantID,
		Quantity:   in.Quantity,
		ListPrice:  in.ListPrice,
		UnitPrice:  ApplyDiscount(in.ListPrice, g.DiscountPercent),
		UnitWeight: in.UnitWeight,
		Note:       strings.TrimSpace(in.Note),
		Position:   g.nextPosition(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	g.Items = append(g.Items, it)
	g.Touch(now)

	g.AddDomainEvent(NewItemAddedEvent(g, &it))

	return &it, nil
}

// UpdateItem changes quantity or note. Only the owner or the host may do this.
func (g *Group) UpdateItem(actorUserID, itemID uuid.UUID, patch ItemPatch) (*Item, error) {
	it := g.ItemByID(itemID)
	if it == nil {
		return nil, ErrItemNotFound
	}
	if err := g.authorizeItemEdit(actorUserID, it); err != nil {
		return nil, err
	}
	if err := g.requireOpen(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		updated := *it
		return &updated, nil
	}

	now := time.Now()
	if err := it.apply(patch, now); err != nil {
		return nil, err
	}
	g.Touch(now)
	updated := *it

	g.AddDomainEvent(NewItemUpdatedEvent(g, &updated, actorUserID))

	return &updated, nil
}

// RemoveItem deletes an item from the cart. Only the owner or the host may do this.
func (g *Group) RemoveItem(actorUserID, itemID uuid.UUID) (*Item, error) {
	it := g.ItemByID(itemID)
	if it == nil {
		return nil, ErrItemNotFound
	}
	if err := g.authorizeItemEdit(actorUserID, it); err != nil {
		return nil, err
	}
	if err := g.requireOpen(); err != nil {
		return nil, err
	}

	removed := *it
	for idx := range g.Items {
		if g.Items[idx].ID == itemID {
			g.Items = append(g.Items[:idx], g.Items[idx+1:]...)
			break
		}
	}
	g.Touch(time.Now())

	g.AddDomainEvent(NewItemRemovedEvent(g, &removed, actorUserID))

	return &removed, nil
}

func (g *Group) authorizeItemEdit(actorUserID uuid.UUID, it *Item) error {
	if g.IsHost(actorUserID) {
		return nil
	}
	owner := g.memberByID(it.MemberID)
	if owner == nil || owner.UserID != actorUserID || !owner.IsActive() {
		return ErrNotAuthorized
	}
	return nil
}

// ListItems returns the cart in insertion order
func (g *Group) ListItems() []Item {
	items := make([]Item, len(g.Items))
	copy(items, g.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items
}

// ItemsOf returns the items owned by a member, in insertion order
func (g *Group) ItemsOf(memberID uuid.UUID) []Item {
	owned := make([]Item, 0)
	for _, it := range g.ListItems() {
		if it.MemberID == memberID {
			owned = append(owned, it)
		}
	}
	return owned
}

// ItemByID returns the item with the given id, or nil
func (g *Group) ItemByID(itemID uuid.UUID) *Item {
	for i := range g.Items {
		if g.Items[i].ID == itemID {
			return &g.Items[i]
		}
	}
	return nil
}

// Totals returns the cart totals at the current discount percent
func (g *Group) Totals() Totals {
	return ComputeTotals(g.Items, g.DiscountPercent)
}

func (g *Group) nextPosition() int {
	next := 1
	for _, it := range g.Items {
		if it.Position >= next {
			next = it.Position + 1
		}
	}
	return next
}

func (g *Group) removeItemsOf(memberID uuid.UUID) []uuid.UUID {
	removed := make([]uuid.UUID, 0)
	kept := g.Items[:0]
	for _, it := range g.Items {
		if it.MemberID == memberID {
			removed = append(removed, it.ID)
			continue
		}
		kept = append(kept, it)
	}
	g.Items = kept
	return removed
}

// Lifecycle

// Rename changes the display name
func (g *Group) Rename(actorUserID uuid.UUID, name string) error {
	if err := g.requireHost(actorUserID); err != nil {
		return err
	}
	if err := g.requireStatus(GroupStatusOpen, GroupStatusLocked); err != nil {
		return err
	}
	name, err := validateName(name)
	if err != nil {
		return err
	}

	g.Name = name
	g.Touch(time.Now())
	g.AddDomainEvent(NewGroupUpdatedEvent(g, ChangeRenamed))
	return nil
}

// ChangeDeadline sets or clears the expiry timestamp
func (g *Group) ChangeDeadline(actorUserID uuid.UUID, expiresAt *time.Time) error {
	if err := g.requireHost(actorUserID); err != nil {
		return err
	}
	if err := g.requireStatus(GroupStatusOpen, GroupStatusLocked); err != nil {
		return err
	}
	now := time.Now()
	if expiresAt != nil && !expiresAt.After(now) {
		return ErrInvalidDeadline
	}

	g.ExpiresAt = expiresAt
	g.Touch(now)
	g.AddDomainEvent(NewGroupUpdatedEvent(g, ChangeDeadlineChanged))
	return nil
}

// ChangeDeliveryMode switches between host_address and member_address.
// Existing members are not required to have an address until checkout.
func (g *Group) ChangeDeliveryMode(actorUserID uuid.UUID, mode DeliveryMode) error {
	if err := g.requireHost(actorUserID); err != nil {
		return err
	}
	if err := g.requireStatus(GroupStatusOpen, GroupStatusLocked); err != nil {
		return err
	}
	if !mode.IsValid() {
		return ErrInvalidDeliveryMode
	}
	if mode == g.DeliveryMode {
		return nil
	}

	g.DeliveryMode = mode
	g.Touch(time.Now())
	g.AddDomainEvent(NewGroupUpdatedEvent(g, ChangeDeliveryModeChanged))
	return nil
}

// Lock freezes the cart
func (g *Group) Lock(actorUserID uuid.UUID) error {
	if err := g.requireHost(actorUserID); err != nil {
		return err
	}
	if err := g.requireOpen(); err != nil {
		return err
	}

	g.Status = GroupStatusLocked
	g.Touch(time.Now())
	g.AddDomainEvent(NewGroupLockedEvent(g, actorUserID))
	return nil
}

// Unlock reopens a locked cart
func (g *Group) Unlock(actorUserID uuid.UUID) error {
	if err := g.requireHost(actorUserID); err != nil {
		return err
	}
	if g.Status != GroupStatusLocked {
		return g.invalidTransition(GroupStatusOpen)
	}

	g.Status = GroupStatusOpen
	g.Touch(time.Now())
	g.AddDomainEvent(NewGroupUpdatedEvent(g, ChangeUnlocked))
	return nil
}

// Delete makes the group unreachable. Members and items go with it.
func (g *Group) Delete(actorUserID uuid.UUID) error {
	if err := g.requireHost(actorUserID); err != nil {
		return err
	}
	if !g.Status.CanTransitionTo(GroupStatusDeleted) {
		return g.invalidTransition(GroupStatusDeleted)
	}

	g.Status = GroupStatusDeleted
	g.Touch(time.Now())
	g.AddDomainEvent(NewGroupDeletedEvent(g, actorUserID))
	return nil
}

// IsExpired is the pure deadline predicate: an open or locked group whose
// deadline has passed
func (g *Group) IsExpired(now time.Time) bool {
	if g.Status != GroupStatusOpen && g.Status != GroupStatusLocked {
		return false
	}
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}

// ExpireIfDue transitions the group to expired when IsExpired holds.
// It reports whether a transition happened; calling it again is a no-op.
func (g *Group) ExpireIfDue(now time.Time) bool {
	if !g.IsExpired(now) {
		return false
	}
	g.Status = GroupStatusExpired
	g.Touch(now)
	g.AddDomainEvent(NewGroupUpdatedEvent(g, ChangeExpired))
	return true
}

// IsDeleted reports whether the group was deleted
func (g *Group) IsDeleted() bool {
	return g.Status == GroupStatusDeleted
}

func (g *Group) recomputeDiscount() {
	previous := g.DiscountPercent
	current := g.DiscountPolicy.Percent(g.ActiveMemberCount())
	if current == previous {
		return
	}
	g.DiscountPercent = current
	for i := range g.Items {
		g.Items[i].reprice(current)
	}
	g.AddDomainEvent(NewDiscountUpdatedEvent(g, previous))
}

func (g *Group) requireHost(userID uuid.UUID) error {
	if !g.IsHost(userID) {
		return ErrNotHost
	}
	return nil
}

func (g *Group) requireOpen() error {
	if g.Status != GroupStatusOpen {
		return groupNotOpen(g.Status)
	}
	return nil
}

func (g *Group) requireStatus(allowed ...GroupStatus) error {
	for _, s := range allowed {
		if g.Status == s {
			return nil
		}
	}
	return groupNotOpen(g.Status)
}

func (g *Group) invalidTransition(target GroupStatus) error {
	return ErrInvalidTransition.
		WithDetail("from", g.Status.String()).
		WithDetail("to", target.String())
}
