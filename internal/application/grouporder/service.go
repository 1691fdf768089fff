package grouporder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultCheckoutTimeout is how long a checkout may stay unfinished before
// the sweep treats it as abandoned
const DefaultCheckoutTimeout = 5 * time.Minute

// ServiceConfig holds group order defaults
type ServiceConfig struct {
	DiscountPolicy    grouporder.DiscountPolicy
	DefaultMaxMembers int
	IdempotencyTTL    time.Duration
	CheckoutTimeout   time.Duration
}

// Dependencies are the collaborators of GroupOrderService.
// Repository is required; the rest may be nil.
type Dependencies struct {
	Repository     grouporder.GroupRepository
	Users          grouporder.UserDirectory
	Addresses      grouporder.AddressBook
	Catalog        grouporder.Catalog
	Hub            grouporder.SubscriptionHub
	EventPublisher shared.EventPublisher
	Idempotency    shared.IdempotencyStore
	Checkout       *CheckoutOrchestrator
	Receipts       ReceiptStorage
	Metrics        Metrics
	Logger         *zap.Logger
}

// GroupOrderService runs every group order use case.
// Mutations of one group are serialized by a per-group lock; domain events are
// published after the save, still under that lock, so subscribers observe
// them in commit order.
type GroupOrderService struct {
	repo        grouporder.GroupRepository
	users       grouporder.UserDirectory
	addresses   grouporder.AddressBook
	catalog     grouporder.Catalog
	hub         grouporder.SubscriptionHub
	publisher   shared.EventPublisher
	idempotency shared.IdempotencyStore
	checkout    *CheckoutOrchestrator
	receipts    ReceiptStorage
	metrics     Metrics
	logger      *zap.Logger
	locks       *KeyedMutex
	cfg         ServiceConfig
	now         func() time.Time
}

// NewGroupOrderService creates a new GroupOrderService
func NewGroupOrderService(deps Dependencies, cfg ServiceConfig) *GroupOrderService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if len(cfg.DiscountPolicy.Tiers) == 0 {
		cfg.DiscountPolicy = grouporder.DefaultDiscountPolicy()
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = shared.DefaultIdempotencyConfig().TTL
	}
	if cfg.CheckoutTimeout <= 0 {
		cfg.CheckoutTimeout = DefaultCheckoutTimeout
	}
	return &GroupOrderService{
		repo:        deps.Repository,
		users:       deps.Users,
		addresses:   deps.Addresses,
		catalog:     deps.Catalog,
		hub:         deps.Hub,
		publisher:   deps.EventPublisher,
		idempotency: deps.Idempotency,
		checkout:    deps.Checkout,
		receipts:    deps.Receipts,
		metrics:     metrics,
		logger:      logger.Named("group_order"),
		locks:       NewKeyedMutex(),
		cfg:         cfg,
		now:         time.Now,
	}
}

// SetEventPublisher sets the publisher that receives committed domain events
func (s *GroupOrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetClock replaces the clock used for deadline checks
func (s *GroupOrderService) SetClock(now func() time.Time) {
	s.now = now
}

// ==================== Lifecycle ====================

// Create opens a new group with the caller as host
func (s *GroupOrderService) Create(ctx context.Context, hostUserID uuid.UUID, req CreateGroupRequest) (*GroupResponse, error) {
	policy := s.cfg.DiscountPolicy
	if len(req.DiscountTiers) > 0 {
		p, err := grouporder.NewDiscountPolicy(req.DiscountTiers)
		if err != nil {
			return nil, err
		}
		policy = p
	}
	if req.HostAddressID != nil {
		if err := s.verifyAddress(ctx, *req.HostAddressID, hostUserID); err != nil {
			return nil, err
		}
	}
	maxMembers := req.MaxMembers
	if maxMembers == 0 {
		maxMembers = s.cfg.DefaultMaxMembers
	}

	g, err := grouporder.NewGroup(grouporder.NewGroupInput{
		StoreID:         req.StoreID,
		HostUserID:      hostUserID,
		HostDisplayName: s.displayName(ctx, hostUserID),
		HostAddressID:   req.HostAddressID,
		Name:            req.Name,
		DeliveryMode:    req.DeliveryMode,
		ExpiresAt:       req.ExpiresAt,
		MaxMembers:      maxMembers,
		Policy:          policy,
	})
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(g.ID)
	defer unlock()
	if err := s.commit(ctx, g); err != nil {
		return nil, err
	}

	s.metrics.RecordGroupCreated(ctx, g.DeliveryMode)
	s.logger.Info("group order created",
		zap.String("group_id", g.ID.String()),
		zap.String("store_id", g.StoreID.String()),
		zap.String("host_user_id", hostUserID.String()),
	)

	resp := ToGroupResponse(g)
	return &resp, nil
}

// GetGroup returns the group with totals
func (s *GroupOrderService) GetGroup(ctx context.Context, groupID uuid.UUID) (*GroupResponse, error) {
	g, err := s.read(ctx, groupID)
	if err != nil {
		return nil, err
	}
	resp := ToGroupResponse(g)
	return &resp, nil
}

// ListGroupsForUser lists the groups the user is an active member of
func (s *GroupOrderService) ListGroupsForUser(ctx context.Context, userID uuid.UUID, filter ListGroupsFilter) ([]GroupListItemResponse, int64, error) {
	groups, total, err := s.repo.FindByUser(ctx, userID, grouporder.ListFilter{
		Status:    grouporder.GroupStatus(filter.Status),
		SortBy:    filter.SortBy,
		SortOrder: filter.SortOrder,
		Page:      filter.Page,
		PageSize:  filter.PageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	now := s.now()
	out := make([]GroupListItemResponse, 0, len(groups))
	for i := range groups {
		g := &groups[i]
		if g.IsExpired(now) {
			// display only; the sweep or the next locked access persists it
			g.Status = grouporder.GroupStatusExpired
		}
		out = append(out, ToGroupListItemResponse(g, userID))
	}
	return out, total, nil
}

// Rename changes the group name
func (s *GroupOrderService) Rename(ctx context.Context, groupID, userID uuid.UUID, name string) (*GroupResponse, error) {
	return s.mutateGroup(ctx, groupID, func(g *grouporder.Group) error {
		return g.Rename(userID, name)
	})
}

// ChangeDeadline sets or clears the expiry timestamp
func (s *GroupOrderService) ChangeDeadline(ctx context.Context, groupID, userID uuid.UUID, expiresAt *time.Time) (*GroupResponse, error) {
	return s.mutateGroup(ctx, groupID, func(g *grouporder.Group) error {
		return g.ChangeDeadline(userID, expiresAt)
	})
}

// ChangeDeliveryMode switches the delivery mode
func (s *GroupOrderService) ChangeDeliveryMode(ctx context.Context, groupID, userID uuid.UUID, mode grouporder.DeliveryMode) (*GroupResponse, error) {
	return s.mutateGroup(ctx, groupID, func(g *grouporder.Group) error {
		return g.ChangeDeliveryMode(userID, mode)
	})
}

// Update applies the host-level changes of req in one commit
func (s *GroupOrderService) Update(ctx context.Context, groupID, userID uuid.UUID, req UpdateGroupRequest) (*GroupResponse, error) {
	return s.mutateGroup(ctx, groupID, func(g *grouporder.Group) error {
		if req.Name != nil {
			if err := g.Rename(userID, *req.Name); err != nil {
				return err
			}
		}
		if req.ExpiresAt != nil || req.ClearDeadline {
			if err := g.ChangeDeadline(userID, req.ExpiresAt); err != nil {
				return err
			}
		}
		if req.DeliveryMode != nil {
			if err := g.ChangeDeliveryMode(userID, *req.DeliveryMode); err != nil {
				return err
			}
		}
		return nil
	})
}

// Lock freezes the cart
func (s *GroupOrderService) Lock(ctx context.Context, groupID, userID uuid.UUID) (*GroupResponse, error) {
	return s.mutateGroup(ctx, groupID, func(g *grouporder.Group) error {
		return g.Lock(userID)
	})
}

// Unlock reopens the cart
func (s *GroupOrderService) Unlock(ctx context.Context, groupID, userID uuid.UUID) (*GroupResponse, error) {
	return s.mutateGroup(ctx, groupID, func(g *grouporder.Group) error {
		return g.Unlock(userID)
	})
}

// Delete removes the group. Later operations on it return GROUP_NOT_FOUND.
func (s *GroupOrderService) Delete(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := s.mutate(ctx, groupID, func(g *grouporder.Group) error {
		return g.Delete(userID)
	})
	if err == nil {
		s.logger.Info("group order deleted",
			zap.String("group_id", groupID.String()),
			zap.String("user_id", userID.String()),
		)
	}
	return err
}

// ExpireGroup applies the time-driven transitions the sweep is responsible
// for: an abandoned checkout is recovered, then a due deadline expires the
// group. It reports whether the group changed; terminal or not yet due groups
// are left alone.
func (s *GroupOrderService) ExpireGroup(ctx context.Context, groupID uuid.UUID) (bool, error) {
	unlock := s.locks.Lock(groupID)
	defer unlock()

	g, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, grouporder.ErrGroupNotFound) {
			return false, nil
		}
		return false, err
	}

	now := s.now()
	changed := false
	if s.checkout != nil && g.CheckoutStale(now, s.cfg.CheckoutTimeout) {
		if err := s.checkout.Recover(ctx, g); err != nil {
			return false, err
		}
		changed = true
	}
	expired := g.ExpireIfDue(now)
	if !changed && !expired {
		return false, nil
	}
	if err := s.commit(ctx, g); err != nil {
		return false, err
	}
	if expired {
		s.metrics.RecordGroupExpired(ctx)
	}
	return true, nil
}

// ==================== Membership ====================

// Join adds the caller to the group
func (s *GroupOrderService) Join(ctx context.Context, groupID, userID uuid.UUID) (*MemberResponse, error) {
	name := s.displayName(ctx, userID)

	var member *grouporder.Member
	_, err := s.mutate(ctx, groupID, func(g *grouporder.Group) error {
		m, err := g.Join(userID, name)
		member = m
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMemberJoined(ctx)
	return &MemberResponse{MemberView: member.View()}, nil
}

// AddMember lets the host add a user
func (s *GroupOrderService) AddMember(ctx context.Context, groupID, hostUserID uuid.UUID, req AddMemberRequest) (*MemberResponse, error) {
	name := s.displayName(ctx, req.UserID)

	var member *grouporder.Member
	_, err := s.mutate(ctx, groupID, func(g *grouporder.Group) error {
		m, err := g.AddMember(hostUserID, req.UserID, name)
		member = m
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMemberJoined(ctx)
	return &MemberResponse{MemberView: member.View()}, nil
}

// Leave removes the caller from the group. A sole host leaving deletes the group.
func (s *GroupOrderService) Leave(ctx context.Context, groupID, userID uuid.UUID) error {
	g, err := s.mutate(ctx, groupID, func(g *grouporder.Group) error {
		_, err := g.Leave(userID)
		return err
	})
	if err != nil {
		return err
	}

	if g.IsDeleted() {
		s.logger.Warn("sole host left, group deleted",
			zap.String("group_id", groupID.String()),
			zap.String("user_id", userID.String()),
		)
		return nil
	}
	s.metrics.RecordMemberLeft(ctx, false)
	return nil
}

// RemoveMember lets the host remove a member
func (s *GroupOrderService) RemoveMember(ctx context.Context, groupID, hostUserID, memberID uuid.UUID) error {
	_, err := s.mutate(ctx, groupID, func(g *grouporder.Group) error {
		_, err := g.RemoveMember(hostUserID, memberID)
		return err
	})
	if err != nil {
		return err
	}
	s.metrics.RecordMemberLeft(ctx, true)
	return nil
}

// SetMemberAddress sets the caller's delivery address after checking ownership
func (s *GroupOrderService) SetMemberAddress(ctx context.Context, groupID, userID uuid.UUID, req SetAddressRequest) (*MemberResponse, error) {
	if err := s.verifyAddress(ctx, req.AddressID, userID); err != nil {
		return nil, err
	}

	var member *grouporder.Member
	_, err := s.mutate(ctx, groupID, func(g *grouporder.Group) error {
		m, err := g.SetMemberAddress(userID, req.AddressID)
		member = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return &MemberResponse{MemberView: member.View()}, nil
}

// ListActiveMembers returns the members who have not left
func (s *GroupOrderService) ListActiveMembers(ctx context.Context, groupID uuid.UUID) ([]MemberResponse, error) {
	g, err := s.read(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return ToMemberResponses(g.ActiveMembers()), nil
}

// ==================== Item ledger ====================

// AddItem adds an item owned by the caller. The catalog price is read once
// and kept as the item's list price; the unit price follows the group's
// discount percent from then on.
func (s *GroupOrderService) AddItem(ctx context.Context, groupID, userID uuid.UUID, req AddItemRequest) (*ItemResponse, error) {
	quote, err := s.quote(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		item *grouporder.Item
		view grouporder.ItemView
	)
	_, err = s.mutate(ctx, groupID, func(g *grouporder.Group) error {
		if quote.StoreID != uuid.Nil && quote.StoreID != g.StoreID {
			return grouporder.ErrInvalidProduct.WithReason("STORE_MISMATCH")
		}
		it, err := g.AddItem(userID, grouporder.NewItemInput{
			ProductID:  req.ProductID,
			VariantID:  req.VariantID,
			Quantity:   req.Quantity,
			ListPrice:  quote.Price,
			UnitWeight: quote.WeightGrams,
			Note:       req.Note,
		})
		if err != nil {
			return err
		}
		item = it
		view = g.ItemView(it)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordItemAdded(ctx)
	s.logger.Debug("item added",
		zap.String("group_id", groupID.String()),
		zap.String("item_id", item.ID.String()),
		zap.String("unit_price", item.UnitPrice.String()),
	)
	return &ItemResponse{ItemView: view}, nil
}

// UpdateItem edits quantity or note. Only the owner or the host may call it.
func (s *GroupOrderService) UpdateItem(ctx context.Context, itemID, userID uuid.UUID, req UpdateItemRequest) (*ItemResponse, error) {
	groupID, err := s.groupOfItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var view grouporder.ItemView
	_, err = s.mutate(ctx, groupID, func(g *grouporder.Group) error {
		it, err := g.UpdateItem(userID, itemID, grouporder.ItemPatch{
			Quantity: req.Quantity,
			Note:     req.Note,
		})
		if err != nil {
			return err
		}
		view = g.ItemView(it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ItemResponse{ItemView: view}, nil
}

// RemoveItem deletes an item. Only the owner or the host may call it.
func (s *GroupOrderService) RemoveItem(ctx context.Context, itemID, userID uuid.UUID) error {
	groupID, err := s.groupOfItem(ctx, itemID)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, groupID, func(g *grouporder.Group) error {
		_, err := g.RemoveItem(userID, itemID)
		return err
	})
	return err
}

// ListItems returns the cart in insertion order
func (s *GroupOrderService) ListItems(ctx context.Context, groupID uuid.UUID) ([]ItemResponse, error) {
	g, err := s.read(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return ToItemResponses(g, g.ListItems()), nil
}

// ==================== Checkout ====================

// Checkout materializes the cart into orders. A non-empty idempotency key
// makes repeated requests fail with DUPLICATE_REQUEST instead of charging twice.
func (s *GroupOrderService) Checkout(ctx context.Context, groupID, userID uuid.UUID, req CheckoutRequest) (*CheckoutResponse, error) {
	if s.checkout == nil {
		return nil, grouporder.NewExternalFailure("checkout", errors.New("checkout is not configured"))
	}
	start := time.Now()

	key := ""
	if req.IdempotencyKey != "" && s.idempotency != nil {
		key = fmt.Sprintf("checkout:%s:%s", groupID, req.IdempotencyKey)
		fresh, err := s.idempotency.MarkProcessed(ctx, key, s.cfg.IdempotencyTTL)
		if err != nil {
			return nil, grouporder.NewExternalFailure("idempotency_store", err)
		}
		if !fresh {
			s.metrics.RecordCheckout(ctx, "", 0, CheckoutOutcomeDuplicate, time.Since(start))
			return nil, grouporder.ErrDuplicateRequest
		}
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()

	g, err := s.load(ctx, groupID)
	if err != nil {
		s.releaseKey(ctx, key)
		return nil, err
	}

	result, err := s.checkout.Run(ctx, g, userID, req)
	if err != nil {
		s.releaseKey(ctx, key)
		outcome := CheckoutOutcomeFailed
		if errors.Is(err, grouporder.ErrCheckoutBlocked) {
			outcome = CheckoutOutcomeBlocked
		}
		s.metrics.RecordCheckout(ctx, g.DeliveryMode, 0, outcome, time.Since(start))
		return nil, err
	}

	s.publish(ctx, g)
	s.metrics.RecordCheckout(ctx, g.DeliveryMode, result.OrderCount, CheckoutOutcomeSuccess, time.Since(start))
	s.logger.Info("group order checked out",
		zap.String("group_id", groupID.String()),
		zap.Int("orders", result.OrderCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// ==================== Realtime ====================

// Subscribe attaches a subscriber to the group's channel. The first message
// received is a group-state snapshot taken under the group lock, so no delta
// committed before it can follow it.
func (s *GroupOrderService) Subscribe(ctx context.Context, groupID uuid.UUID, subscriberID string) (<-chan grouporder.RealtimeMessage, error) {
	if s.hub == nil {
		return nil, errors.New("realtime hub is not configured")
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()

	g, err := s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	msg, err := grouporder.StateMessage(g)
	if err != nil {
		return nil, fmt.Errorf("encode group state: %w", err)
	}
	return s.hub.Subscribe(groupID, subscriberID, msg)
}

// Unsubscribe detaches a subscriber from the group's channel
func (s *GroupOrderService) Unsubscribe(groupID uuid.UUID, subscriberID string) {
	if s.hub != nil {
		s.hub.Unsubscribe(groupID, subscriberID)
	}
}

// ==================== Internals ====================

func (s *GroupOrderService) mutateGroup(ctx context.Context, groupID uuid.UUID, fn func(g *grouporder.Group) error) (*GroupResponse, error) {
	g, err := s.mutate(ctx, groupID, fn)
	if err != nil {
		return nil, err
	}
	resp := ToGroupResponse(g)
	return &resp, nil
}

// mutate runs fn on the freshly loaded aggregate under the group lock and
// commits the result
func (s *GroupOrderService) mutate(ctx context.Context, groupID uuid.UUID, fn func(g *grouporder.Group) error) (*grouporder.Group, error) {
	unlock := s.locks.Lock(groupID)
	defer unlock()

	g, err := s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := fn(g); err != nil {
		return nil, err
	}
	if len(g.GetDomainEvents()) == 0 {
		return g, nil
	}
	if err := s.commit(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GroupOrderService) read(ctx context.Context, groupID uuid.UUID) (*grouporder.Group, error) {
	unlock := s.locks.Lock(groupID)
	defer unlock()
	return s.load(ctx, groupID)
}

// load fetches the group and applies a due expiry before anything else sees it.
// Callers must hold the group lock.
func (s *GroupOrderService) load(ctx context.Context, groupID uuid.UUID) (*grouporder.Group, error) {
	g, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.ExpireIfDue(s.now()) {
		if err := s.commit(ctx, g); err != nil {
			return nil, err
		}
		s.metrics.RecordGroupExpired(ctx)
		s.logger.Info("group order expired on access", zap.String("group_id", groupID.String()))
	}
	return g, nil
}

// commit saves the aggregate and then publishes its pending events
func (s *GroupOrderService) commit(ctx context.Context, g *grouporder.Group) error {
	if err := s.repo.Save(ctx, g); err != nil {
		g.ClearDomainEvents()
		return err
	}
	s.publish(ctx, g)
	return nil
}

// publish hands pending events to the event bus. Failures are logged; the
// state change is already committed and late subscribers resync from a snapshot.
func (s *GroupOrderService) publish(ctx context.Context, g *grouporder.Group) {
	events := g.GetDomainEvents()
	g.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish group order events",
			zap.String("group_id", g.ID.String()),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}

func (s *GroupOrderService) groupOfItem(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error) {
	g, err := s.repo.FindByItemID(ctx, itemID)
	if err != nil {
		if errors.Is(err, grouporder.ErrGroupNotFound) {
			return uuid.Nil, grouporder.ErrItemNotFound
		}
		return uuid.Nil, err
	}
	return g.ID, nil
}

func (s *GroupOrderService) quote(ctx context.Context, req AddItemRequest) (*grouporder.PriceQuote, error) {
	if s.catalog == nil {
		if req.UnitPrice == nil {
			return nil, grouporder.ErrInvalidPrice.WithReason("PRICE_REQUIRED")
		}
		return &grouporder.PriceQuote{
			ProductID:   req.ProductID,
			VariantID:   req.VariantID,
			Price:       *req.UnitPrice,
			WeightGrams: req.UnitWeight,
		}, nil
	}
	q, err := s.catalog.GetCurrentPrice(ctx, req.ProductID, req.VariantID)
	if err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, grouporder.NewExternalFailure("catalog", err)
	}
	return q, nil
}

func (s *GroupOrderService) verifyAddress(ctx context.Context, addressID, ownerUserID uuid.UUID) error {
	if s.addresses == nil {
		return nil
	}
	if _, err := s.addresses.GetAddress(ctx, addressID, ownerUserID); err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			return err
		}
		return grouporder.NewExternalFailure("address_book", err)
	}
	return nil
}

// displayName resolves a user's name; identity failures fall back to a placeholder
func (s *GroupOrderService) displayName(ctx context.Context, userID uuid.UUID) string {
	fallback := fmt.Sprintf("Member %s", userID.String()[:8])
	if s.users == nil {
		return fallback
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil || u == nil || u.DisplayName == "" {
		if err != nil {
			s.logger.Debug("user lookup failed, using placeholder name",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
		return fallback
	}
	return u.DisplayName
}

func (s *GroupOrderService) releaseKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotency.Release(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}
