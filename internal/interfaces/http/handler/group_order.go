package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	groupapp "github.com/groupbuy/backend/internal/application/grouporder"
	"github.com/groupbuy/backend/internal/interfaces/http/dto"
	"github.com/groupbuy/backend/internal/interfaces/http/middleware"
)

// GroupOrderHandler serves the group order REST API
type GroupOrderHandler struct {
	BaseHandler
	service *groupapp.GroupOrderService
}

// NewGroupOrderHandler creates a new GroupOrderHandler
func NewGroupOrderHandler(service *groupapp.GroupOrderService) *GroupOrderHandler {
	return &GroupOrderHandler{service: service}
}

// Create godoc
// @ID           createGroupOrder
// @Summary      Open a group order
// @Description  Opens a shared cart for one store. The caller becomes the host and first member.
// @Tags         group-orders
// @Accept       json
// @Produce      json
// @Param        request body groupapp.CreateGroupRequest true "Group order"
// @Success      201 {object} APIResponse[groupapp.GroupResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders [post]
func (h *GroupOrderHandler) Create(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req groupapp.CreateGroupRequest
	if !h.bindJSON(c, &req) {
		return
	}
	group, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, group)
}

// List godoc
// @ID           listGroupOrders
// @Summary      List my group orders
// @Description  Lists the groups the caller is an active member of, newest first by default
// @Tags         group-orders
// @Produce      json
// @Param        status    query string false "Status filter" Enums(open, locked, checking_out, expired, closed)
// @Param        sort_by    query string false "Sort column" Enums(created_at, updated_at, expires_at, name, status)
// @Param        sort_order query string false "Sort direction" Enums(asc, desc)
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20)
// @Success      200 {object} APIResponse[[]groupapp.GroupListItemResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders [get]
func (h *GroupOrderHandler) List(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	var filter groupapp.ListGroupsFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page := dto.PageRequest{Page: filter.Page, PageSize: filter.PageSize}.Normalize()
	filter.Page, filter.PageSize = page.Page, page.PageSize

	groups, total, err := h.service.ListGroupsForUser(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, groups, total, page.Page, page.PageSize)
}

// Get godoc
// @ID           getGroupOrder
// @Summary      Get a group order
// @Description  Returns the group with members, items and discounted totals
// @Tags         group-orders
// @Produce      json
// @Param        id path string true "Group ID" format(uuid)
// @Success      200 {object} APIResponse[groupapp.GroupResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id} [get]
func (h *GroupOrderHandler) Get(c *gin.Context) {
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	group, err := h.service.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, group)
}

// Update godoc
// @ID           updateGroupOrder
// @Summary      Update a group order
// @Description  Host only. Renames, moves the deadline or switches delivery mode in one commit.
// @Tags         group-orders
// @Accept       json
// @Produce      json
// @Param        id      path string                      true "Group ID" format(uuid)
// @Param        request body groupapp.UpdateGroupRequest true "Changes"
// @Success      200 {object} APIResponse[groupapp.GroupResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id} [patch]
func (h *GroupOrderHandler) Update(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	var req groupapp.UpdateGroupRequest
	if !h.bindJSON(c, &req) {
		return
	}
	group, err := h.service.Update(c.Request.Context(), groupID, userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, group)
}

// Delete godoc
// @ID           deleteGroupOrder
// @Summary      Delete a group order
// @Description  Host only. Subscribers receive group-deleted and their streams end.
// @Tags         group-orders
// @Param        id path string true "Group ID" format(uuid)
// @Success      204
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id} [delete]
func (h *GroupOrderHandler) Delete(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), groupID, userID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Lock godoc
// @ID           lockGroupOrder
// @Summary      Lock the cart
// @Description  Host only. Freezes membership and items until unlocked or checked out.
// @Tags         group-orders
// @Produce      json
// @Param        id path string true "Group ID" format(uuid)
// @Success      200 {object} APIResponse[groupapp.GroupResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/lock [post]
func (h *GroupOrderHandler) Lock(c *gin.Context) {
	h.hostTransition(c, h.service.Lock)
}

// Unlock godoc
// @ID           unlockGroupOrder
// @Summary      Unlock the cart
// @Description  Host only. Reopens a locked group before its deadline.
// @Tags         group-orders
// @Produce      json
// @Param        id path string true "Group ID" format(uuid)
// @Success      200 {object} APIResponse[groupapp.GroupResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/unlock [post]
func (h *GroupOrderHandler) Unlock(c *gin.Context) {
	h.hostTransition(c, h.service.Unlock)
}

func (h *GroupOrderHandler) hostTransition(c *gin.Context, fn func(context.Context, uuid.UUID, uuid.UUID) (*groupapp.GroupResponse, error)) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	group, err := fn(c.Request.Context(), groupID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, group)
}

// Join godoc
// @ID           joinGroupOrder
// @Summary      Join a group order
// @Description  Adds the caller as a member of an open group
// @Tags         group-orders
// @Produce      json
// @Param        id path string true "Group ID" format(uuid)
// @Success      201 {object} APIResponse[groupapp.MemberResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/join [post]
func (h *GroupOrderHandler) Join(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	member, err := h.service.Join(c.Request.Context(), groupID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, member)
}

// Leave godoc
// @ID           leaveGroupOrder
// @Summary      Leave a group order
// @Description  Removes the caller and their items. A host who is the only member deletes the group.
// @Tags         group-orders
// @Param        id path string true "Group ID" format(uuid)
// @Success      204
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/leave [post]
func (h *GroupOrderHandler) Leave(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	if err := h.service.Leave(c.Request.Context(), groupID, userID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListMembers godoc
// @ID           listGroupOrderMembers
// @Summary      List active members
// @Tags         group-orders
// @Produce      json
// @Param        id path string true "Group ID" format(uuid)
// @Success      200 {object} APIResponse[[]groupapp.MemberResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/members [get]
func (h *GroupOrderHandler) ListMembers(c *gin.Context) {
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	members, err := h.service.ListActiveMembers(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, members)
}

// AddMember godoc
// @ID           addGroupOrderMember
// @Summary      Add a member
// @Description  Host only. Adds another user directly.
// @Tags         group-orders
// @Accept       json
// @Produce      json
// @Param        id      path string                    true "Group ID" format(uuid)
// @Param        request body groupapp.AddMemberRequest true "User to add"
// @Success      201 {object} APIResponse[groupapp.MemberResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/members [post]
func (h *GroupOrderHandler) AddMember(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	var req groupapp.AddMemberRequest
	if !h.bindJSON(c, &req) {
		return
	}
	member, err := h.service.AddMember(c.Request.Context(), groupID, userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, member)
}

// RemoveMember godoc
// @ID           removeGroupOrderMember
// @Summary      Remove a member
// @Description  Host only. Removes the member and their items from an open group.
// @Tags         group-orders
// @Param        id       path string true "Group ID" format(uuid)
// @Param        memberId path string true "Member ID" format(uuid)
// @Success      204
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/members/{memberId} [delete]
func (h *GroupOrderHandler) RemoveMember(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	memberID, ok := h.uuidParam(c, "memberId")
	if !ok {
		return
	}
	if err := h.service.RemoveMember(c.Request.Context(), groupID, userID, memberID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// SetAddress godoc
// @ID           setGroupOrderMemberAddress
// @Summary      Set my delivery address
// @Description  member_address mode only. The address must belong to the caller.
// @Tags         group-orders
// @Accept       json
// @Produce      json
// @Param        id      path string                     true "Group ID" format(uuid)
// @Param        request body groupapp.SetAddressRequest true "Address"
// @Success      200 {object} APIResponse[groupapp.MemberResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/address [put]
func (h *GroupOrderHandler) SetAddress(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	var req groupapp.SetAddressRequest
	if !h.bindJSON(c, &req) {
		return
	}
	member, err := h.service.SetMemberAddress(c.Request.Context(), groupID, userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, member)
}

// ListItems godoc
// @ID           listGroupOrderItems
// @Summary      List cart items
// @Tags         group-orders
// @Produce      json
// @Param        id path string true "Group ID" format(uuid)
// @Success      200 {object} APIResponse[[]groupapp.ItemResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/items [get]
func (h *GroupOrderHandler) ListItems(c *gin.Context) {
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	items, err := h.service.ListItems(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// AddItem godoc
// @ID           addGroupOrderItem
// @Summary      Add an item
// @Description  Adds an item owned by the caller. The price is taken from the catalog.
// @Tags         group-orders
// @Accept       json
// @Produce      json
// @Param        id      path string                  true "Group ID" format(uuid)
// @Param        request body groupapp.AddItemRequest true "Item"
// @Success      201 {object} APIResponse[groupapp.ItemResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/items [post]
func (h *GroupOrderHandler) AddItem(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	var req groupapp.AddItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	item, err := h.service.AddItem(c.Request.Context(), groupID, userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, item)
}

// UpdateItem godoc
// @ID           updateGroupOrderItem
// @Summary      Update an item
// @Description  Item owner or host. Changes quantity or note.
// @Tags         group-orders
// @Accept       json
// @Produce      json
// @Param        itemId  path string                     true "Item ID" format(uuid)
// @Param        request body groupapp.UpdateItemRequest true "Changes"
// @Success      200 {object} APIResponse[groupapp.ItemResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-order-items/{itemId} [patch]
func (h *GroupOrderHandler) UpdateItem(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	itemID, ok := h.uuidParam(c, "itemId")
	if !ok {
		return
	}
	var req groupapp.UpdateItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	item, err := h.service.UpdateItem(c.Request.Context(), itemID, userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// RemoveItem godoc
// @ID           removeGroupOrderItem
// @Summary      Remove an item
// @Description  Item owner or host
// @Tags         group-orders
// @Param        itemId path string true "Item ID" format(uuid)
// @Success      204
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-order-items/{itemId} [delete]
func (h *GroupOrderHandler) RemoveItem(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	itemID, ok := h.uuidParam(c, "itemId")
	if !ok {
		return
	}
	if err := h.service.RemoveItem(c.Request.Context(), itemID, userID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Checkout godoc
// @ID           checkoutGroupOrder
// @Summary      Check out the group
// @Description  Host only. Creates one order (host_address) or one per member with items (member_address).
// @Description  Send an Idempotency-Key to make retries safe.
// @Tags         group-orders
// @Accept       json
// @Produce      json
// @Param        id              path   string                    true  "Group ID" format(uuid)
// @Param        Idempotency-Key header string                    false "Idempotency key"
// @Param        request         body   groupapp.CheckoutRequest  true  "Payment"
// @Success      201 {object} APIResponse[groupapp.CheckoutResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/checkout [post]
func (h *GroupOrderHandler) Checkout(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	var req groupapp.CheckoutRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = c.GetHeader(middleware.HeaderIdempotencyKey)
	if len(req.IdempotencyKey) > 128 {
		h.ErrorWithCode(c, dto.ErrCodeBadRequest, "Idempotency-Key is too long")
		return
	}

	result, err := h.service.Checkout(c.Request.Context(), groupID, userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Receipt godoc
// @ID           getGroupOrderReceipt
// @Summary      Get the checkout receipt
// @Description  Returns a short-lived download link to the receipt archived when the group checked out.
// @Tags         group-orders
// @Produce      json
// @Param        id path string true "Group ID" format(uuid)
// @Success      200 {object} APIResponse[groupapp.ReceiptResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /group-orders/{id}/receipt [get]
func (h *GroupOrderHandler) Receipt(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, ok := h.groupParam(c)
	if !ok {
		return
	}
	receipt, err := h.service.GetReceipt(c.Request.Context(), groupID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipt)
}
