package router

import (
	"github.com/groupbuy/backend/internal/interfaces/http/handler"
)

// GroupOrderRoutes returns the route groups for group orders and their items.
// Items are addressed by their own id, so they live outside the group prefix.
func GroupOrderRoutes(h *handler.GroupOrderHandler, stream *handler.GroupOrderStreamHandler) []*DomainGroup {
	groups := NewDomainGroup("group-orders", "/group-orders").
		POST("", h.Create).
		GET("", h.List).
		GET("/:id", h.Get).
		PATCH("/:id", h.Update).
		DELETE("/:id", h.Delete).
		POST("/:id/lock", h.Lock).
		POST("/:id/unlock", h.Unlock).
		POST("/:id/join", h.Join).
		POST("/:id/leave", h.Leave).
		GET("/:id/members", h.ListMembers).
		POST("/:id/members", h.AddMember).
		DELETE("/:id/members/:memberId", h.RemoveMember).
		PUT("/:id/address", h.SetAddress).
		GET("/:id/items", h.ListItems).
		POST("/:id/items", h.AddItem).
		POST("/:id/checkout", h.Checkout).
		GET("/:id/receipt", h.Receipt)
	if stream != nil {
		groups.GET("/:id/stream", stream.Stream)
	}

	items := NewDomainGroup("group-order-items", "/group-order-items").
		PATCH("/:itemId", h.UpdateItem).
		DELETE("/:itemId", h.RemoveItem)

	return []*DomainGroup{groups, items}
}

// SystemRoutes returns the authenticated system endpoints
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/info", h.GetSystemInfo).
		GET("/ping", h.Ping)
}
