package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	groupapp "github.com/groupbuy/backend/internal/application/grouporder"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/cache"
	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/groupbuy/backend/internal/infrastructure/payment"
	"github.com/groupbuy/backend/internal/infrastructure/persistence"
	"github.com/groupbuy/backend/internal/infrastructure/persistence/models"
	"github.com/groupbuy/backend/internal/infrastructure/realtime"
	"github.com/groupbuy/backend/internal/infrastructure/shipping"
	"github.com/groupbuy/backend/internal/interfaces/http/dto"
	"github.com/groupbuy/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = middleware.SetupValidator()
}

const testUserHeader = "X-Test-User"

// testAuth stands in for the JWT middleware: the caller is whoever X-Test-User names
func testAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := uuid.Parse(c.GetHeader(testUserHeader)); err == nil {
			c.Set(middleware.JWTUserIDKey, id)
			c.Set("user_id", id.String())
		}
		c.Next()
	}
}

// apiEnv is a running API backed by an in-memory sqlite database
type apiEnv struct {
	t         *testing.T
	engine    *gin.Engine
	db        *persistence.Database
	hub       *realtime.Hub
	service   *groupapp.GroupOrderService
	stream    *GroupOrderStreamHandler
	storeID   uuid.UUID
	productID uuid.UUID
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: ":memory:",
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	env := &apiEnv{
		t:         t,
		db:        db,
		hub:       realtime.NewHub(realtime.WithBufferSize(16)),
		storeID:   uuid.New(),
		productID: uuid.New(),
	}
	t.Cleanup(env.hub.Close)

	require.NoError(t, db.DB.Create(&models.ProductModel{
		BaseModel:   models.BaseModel{ID: env.productID},
		StoreID:     env.storeID,
		Name:        "Flat white",
		Price:       decimal.NewFromInt(40),
		WeightGrams: 300,
		Active:      true,
	}).Error)

	repo := persistence.NewGormGroupOrderRepository(db.DB)
	addresses := persistence.NewGormAddressBook(db.DB)
	checkout := groupapp.NewCheckoutOrchestrator(
		repo,
		addresses,
		shipping.NewFlatRateCalculator(config.ShippingConfig{BaseFee: 10}),
		payment.NewNoneGateway(),
		persistence.NewGormOrderWriter(db.DB),
		nil,
	)
	env.service = groupapp.NewGroupOrderService(groupapp.Dependencies{
		Repository:  repo,
		Users:       persistence.NewGormUserDirectory(db.DB),
		Addresses:   addresses,
		Catalog:     persistence.NewGormCatalog(db.DB),
		Hub:         env.hub,
		Idempotency: cache.NewInMemoryIdempotencyStore(),
		Checkout:    checkout,
	}, groupapp.ServiceConfig{})

	h := NewGroupOrderHandler(env.service)
	env.stream = NewGroupOrderStreamHandler(env.service)
	t.Cleanup(env.stream.Close)

	env.engine = gin.New()
	env.engine.Use(middleware.RequestID(), testAuth())
	api := env.engine.Group("/api/v1")
	groups := api.Group("/group-orders")
	groups.POST("", h.Create)
	groups.GET("", h.List)
	groups.GET("/:id", h.Get)
	groups.PATCH("/:id", h.Update)
	groups.DELETE("/:id", h.Delete)
	groups.POST("/:id/lock", h.Lock)
	groups.POST("/:id/unlock", h.Unlock)
	groups.POST("/:id/join", h.Join)
	groups.POST("/:id/leave", h.Leave)
	groups.GET("/:id/members", h.ListMembers)
	groups.POST("/:id/members", h.AddMember)
	groups.DELETE("/:id/members/:memberId", h.RemoveMember)
	groups.PUT("/:id/address", h.SetAddress)
	groups.GET("/:id/items", h.ListItems)
	groups.POST("/:id/items", h.AddItem)
	groups.POST("/:id/checkout", h.Checkout)
	groups.GET("/:id/stream", env.stream.Stream)
	api.PATCH("/group-order-items/:itemId", h.UpdateItem)
	api.DELETE("/group-order-items/:itemId", h.RemoveItem)
	return env
}

// newUser seeds a directory user
func (e *apiEnv) newUser(name string) uuid.UUID {
	e.t.Helper()
	id := uuid.New()
	require.NoError(e.t, e.db.DB.Create(&models.UserModel{
		BaseModel:   models.BaseModel{ID: id},
		DisplayName: name,
	}).Error)
	return id
}

// newAddress seeds an address owned by userID
func (e *apiEnv) newAddress(userID uuid.UUID) uuid.UUID {
	e.t.Helper()
	id := uuid.New()
	require.NoError(e.t, e.db.DB.Create(&models.AddressModel{
		BaseModel:     models.BaseModel{ID: id},
		UserID:        userID,
		RecipientName: "Front desk",
		Line1:         "1 Main St",
		City:          "Springfield",
		Country:       "US",
	}).Error)
	return id
}

func (e *apiEnv) do(method, path string, userID uuid.UUID, body any, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req.Header.Set(testUserHeader, userID.String())
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

// createGroup opens a group as hostID and returns its id
func (e *apiEnv) createGroup(hostID uuid.UUID, extra map[string]any) uuid.UUID {
	e.t.Helper()
	body := map[string]any{"store_id": e.storeID, "name": "Office coffee"}
	for k, v := range extra {
		body[k] = v
	}
	w := e.do(http.MethodPost, "/api/v1/group-orders", hostID, body)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	var group groupapp.GroupResponse
	decodeData(e.t, w, &group)
	return group.ID
}

func groupPath(id uuid.UUID, suffix string) string {
	return fmt.Sprintf("/api/v1/group-orders/%s%s", id, suffix)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	return env.Error
}

// ============================================
// BaseHandler
// ============================================

func TestBaseHandler_CurrentUserMissing(t *testing.T) {
	var h BaseHandler
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := h.currentUser(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeUnauthorized, decodeError(t, w).Code)
}

func TestBaseHandler_UUIDParam(t *testing.T) {
	var h BaseHandler
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "itemId", Value: "not-a-uuid"}}

	_, ok := h.uuidParam(c, "itemId")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errInfo := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeBadRequest, errInfo.Code)
	assert.Equal(t, "Invalid itemId format", errInfo.Message)
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", grouporder.ErrGroupNotFound, http.StatusNotFound, "GROUP_NOT_FOUND"},
		{"not host", grouporder.ErrNotHost, http.StatusForbidden, "NOT_AUTHORIZED"},
		{"invalid state", grouporder.ErrGroupNotOpen, http.StatusUnprocessableEntity, "GROUP_NOT_OPEN"},
		{"conflict", grouporder.ErrGroupFull, http.StatusConflict, "GROUP_FULL"},
		{"external", grouporder.NewExternalFailure("payment", errors.New("timeout")), http.StatusBadGateway, "EXTERNAL_FAILURE"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h BaseHandler
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())
			c.Set("request_id", "req-1")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			errInfo := decodeError(t, w)
			assert.Equal(t, tt.wantCode, errInfo.Code)
			assert.Equal(t, "req-1", errInfo.RequestID)
			assert.Equal(t, tt.wantCode, c.GetString(middleware.ErrorCodeKey))
			assert.NotContains(t, w.Body.String(), "timeout")
		})
	}
}
