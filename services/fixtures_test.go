package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"grocery/database"
	"grocery/events"
	"grocery/models"
	"grocery/payment"
	"grocery/pricing"
	"grocery/utils"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeGateway struct {
	mu    sync.Mutex
	err   error
	calls []payment.SessionRequest
}

func (g *fakeGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Session{Reference: "ref-" + req.OrderID, URL: "https://pay.test/" + req.OrderID}, nil
}

type recordingScheduler struct {
	orderIDs []string
}

func (s *recordingScheduler) SchedulePaymentCheck(_ context.Context, orderID string) error {
	s.orderIDs = append(s.orderIDs, orderID)
	return nil
}

type failingClearer struct{}

func (failingClearer) ClearCart(context.Context, string) error {
	return errors.New("broker down")
}

// flakyCatalog fails lookups for the listed products.
type flakyCatalog struct {
	ProductCatalog
	broken map[primitive.ObjectID]bool
}

func (c flakyCatalog) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	if c.broken[id] {
		return nil, errors.New("catalog timeout")
	}
	return c.ProductCatalog.FindByID(ctx, id)
}

type fixture struct {
	store     *database.Store
	carts     *CartService
	orders    *OrderService
	auth      *AuthService
	events    *events.Recorder
	gateway   *fakeGateway
	scheduler *recordingScheduler
}

type fixtureOption func(*OrderServiceConfig)

func withPolicy(p pricing.Policy) fixtureOption {
	return func(c *OrderServiceConfig) { c.Policy = p }
}

func withClearer(cl CartClearer) fixtureOption {
	return func(c *OrderServiceConfig) { c.Clearer = cl }
}

func withCatalog(cat ProductCatalog) fixtureOption {
	return func(c *OrderServiceConfig) { c.Catalog = cat }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	store := database.NewMemory().Store()
	log := zap.NewNop()

	f := &fixture{
		store:     store,
		events:    &events.Recorder{},
		gateway:   &fakeGateway{},
		scheduler: &recordingScheduler{},
	}
	f.carts = NewCartService(store.Carts, store.Products, pricing.DefaultPolicy(), log)
	cfg := OrderServiceConfig{
		Orders:         store.Orders,
		Catalog:        store.Products,
		Addresses:      store.Addresses,
		Carts:          f.carts,
		Clearer:        f.carts,
		Gateway:        f.gateway,
		Events:         f.events,
		Scheduler:      f.scheduler,
		Policy:         pricing.DefaultPolicy(),
		PaymentTimeout: 15 * time.Minute,
		Logger:         log,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.orders = NewOrderService(cfg)
	f.auth = NewAuthService(store.Users, store.Tokens, utilsTokens(), f.carts, log)
	return f
}

func (f *fixture) addProduct(t *testing.T, name string, price float64) primitive.ObjectID {
	t.Helper()
	p := &models.Product{Name: name, Category: "grocery", Price: price, Stock: 10, IsActive: true}
	require.NoError(t, f.store.Products.Create(context.Background(), p))
	return p.ID
}

func (f *fixture) addAddress(t *testing.T, userID string) string {
	t.Helper()
	a := &models.Address{
		UserID:        userID,
		AddressType:   models.AddressTypeHome,
		ReceiverName:  "Asha",
		ReceiverPhone: "9876543210",
		Line1:         "12 Lake View",
		City:          "Pune",
		State:         "MH",
		Pincode:       "411001",
	}
	require.NoError(t, f.store.Addresses.Create(context.Background(), a))
	return a.ID.Hex()
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), err.Error())
}

func float(v float64) *float64 { return &v }

func utilsTokens() *utils.Tokens {
	return utils.NewTokens("test-secret", time.Hour, time.Hour)
}
