package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	groupapp "github.com/groupbuy/backend/internal/application/grouporder"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/auth"
	"github.com/groupbuy/backend/internal/infrastructure/cache"
	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/groupbuy/backend/internal/infrastructure/event"
	"github.com/groupbuy/backend/internal/infrastructure/payment"
	"github.com/groupbuy/backend/internal/infrastructure/persistence"
	"github.com/groupbuy/backend/internal/infrastructure/realtime"
	"github.com/groupbuy/backend/internal/infrastructure/shipping"
	"github.com/groupbuy/backend/internal/infrastructure/storage"
	"github.com/groupbuy/backend/internal/interfaces/http/handler"
	"github.com/groupbuy/backend/internal/interfaces/http/middleware"
	"github.com/groupbuy/backend/internal/interfaces/http/router"
	"github.com/groupbuy/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "integration-test-secret-at-least-32-bytes"

// TestServer is the API wired the way cmd/server wires it, minus telemetry
// and Redis.
type TestServer struct {
	t         *testing.T
	DB        *gorm.DB
	Engine    *gin.Engine
	Service   *groupapp.GroupOrderService
	Hub       *realtime.Hub
	JWT       *auth.JWTService
	Blacklist *auth.InMemoryTokenBlacklist
	Receipts  *storage.MemoryObjectStorage
	Fixtures  *testutil.Fixtures
	StoreID   uuid.UUID
	ProductID uuid.UUID
}

// ServerOption overrides a collaborator of the test server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	payments grouporder.PaymentGateway
}

// WithPaymentGateway replaces the always-succeeding gateway.
func WithPaymentGateway(gw grouporder.PaymentGateway) ServerOption {
	return func(o *serverOptions) { o.payments = gw }
}

// NewTestServer builds the full stack over db.
func NewTestServer(t *testing.T, db *gorm.DB, opts ...ServerOption) *TestServer {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())

	options := serverOptions{payments: payment.NewNoneGateway()}
	for _, opt := range opts {
		opt(&options)
	}

	log := zap.NewNop()
	hub := realtime.NewHub(realtime.WithBufferSize(32))
	t.Cleanup(hub.Close)

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(realtime.NewEventForwarder(hub, log))
	receipts := storage.NewMemoryObjectStorage()
	bus.Subscribe(groupapp.NewReceiptArchiver(receipts, log))
	require.NoError(t, bus.Start(context.Background()))

	repo := persistence.NewGormGroupOrderRepository(db)
	addresses := persistence.NewGormAddressBook(db)
	checkout := groupapp.NewCheckoutOrchestrator(
		repo,
		addresses,
		shipping.NewFlatRateCalculator(config.ShippingConfig{BaseFee: 8}),
		options.payments,
		persistence.NewGormOrderWriter(db),
		log,
	)
	service := groupapp.NewGroupOrderService(groupapp.Dependencies{
		Repository:     repo,
		Users:          persistence.NewGormUserDirectory(db),
		Addresses:      addresses,
		Catalog:        persistence.NewGormCatalog(db),
		Hub:            hub,
		EventPublisher: bus,
		Idempotency:    cache.NewInMemoryIdempotencyStore(),
		Checkout:       checkout,
		Receipts:       receipts,
		Logger:         log,
	}, groupapp.ServiceConfig{})

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                testSecret,
		Issuer:                "groupbuy-test",
		AccessTokenExpiration: time.Hour,
	})
	blacklist := auth.NewInMemoryTokenBlacklist()
	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.TokenBlacklist = blacklist
	jwtConfig.Logger = log

	engine := gin.New()
	engine.Use(middleware.RequestID())

	stream := handler.NewGroupOrderStreamHandler(service)
	t.Cleanup(stream.Close)

	r := router.NewRouter(engine, router.WithAPIMiddleware(middleware.JWTAuthMiddlewareWithConfig(jwtConfig)))
	for _, g := range router.GroupOrderRoutes(handler.NewGroupOrderHandler(service), stream) {
		r.Register(g)
	}
	r.Setup()

	fx := testutil.NewFixtures(t, db, 42)
	storeID := testutil.TestStoreID()
	return &TestServer{
		t:         t,
		DB:        db,
		Engine:    engine,
		Service:   service,
		Hub:       hub,
		JWT:       jwtService,
		Blacklist: blacklist,
		Receipts:  receipts,
		Fixtures:  fx,
		StoreID:   storeID,
		ProductID: fx.Product(storeID, decimal.NewFromInt(50)),
	}
}

// Token issues an access token for userID.
func (ts *TestServer) Token(userID uuid.UUID) string {
	ts.t.Helper()
	token, _, err := ts.JWT.GenerateAccessToken(userID, "")
	require.NoError(ts.t, err)
	return token
}

// As returns a client authenticated as userID with a bearer token.
func (ts *TestServer) As(userID uuid.UUID) *testutil.Client {
	return testutil.NewClient(ts.t, ts.Engine).As("Authorization", "Bearer "+ts.Token(userID))
}

// Anonymous returns a client without credentials.
func (ts *TestServer) Anonymous() *testutil.Client {
	return testutil.NewClient(ts.t, ts.Engine)
}

// CreateGroup creates a group hosted by hostID and returns it.
func (ts *TestServer) CreateGroup(hostID uuid.UUID, body map[string]any) groupapp.GroupResponse {
	ts.t.Helper()
	req := map[string]any{"store_id": ts.StoreID, "name": "Friday lunch"}
	for k, v := range body {
		req[k] = v
	}
	w := ts.As(hostID).Do(http.MethodPost, "/api/v1/group-orders", req)
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	return testutil.DecodeData[groupapp.GroupResponse](ts.t, w)
}

// Get fetches the group as userID.
func (ts *TestServer) Get(userID, groupID uuid.UUID) groupapp.GroupResponse {
	ts.t.Helper()
	w := ts.As(userID).Do(http.MethodGet, groupURL(groupID, ""), nil)
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())
	return testutil.DecodeData[groupapp.GroupResponse](ts.t, w)
}

// Join adds userID to the group and asserts it succeeded.
func (ts *TestServer) Join(userID, groupID uuid.UUID) {
	ts.t.Helper()
	w := ts.As(userID).Do(http.MethodPost, groupURL(groupID, "/join"), nil)
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
}

// AddItem puts quantity of the default product into the cart as userID.
func (ts *TestServer) AddItem(userID, groupID uuid.UUID, quantity int) groupapp.ItemResponse {
	ts.t.Helper()
	w := ts.As(userID).Do(http.MethodPost, groupURL(groupID, "/items"),
		map[string]any{"product_id": ts.ProductID, "quantity": quantity})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	return testutil.DecodeData[groupapp.ItemResponse](ts.t, w)
}

// NewHTTPServer serves the engine over a real listener, for streams.
func (ts *TestServer) NewHTTPServer() *httptest.Server {
	srv := httptest.NewServer(ts.Engine)
	ts.t.Cleanup(srv.Close)
	return srv
}

func groupURL(groupID uuid.UUID, suffix string) string {
	return "/api/v1/group-orders/" + groupID.String() + suffix
}
