package service_test

import (
	"context"
	"database/sql"
	"time"

	sendgridclient "github.com/sendgrid/sendgrid-go"
	"github.com/stretchr/testify/mock"
	"github.com/trendhub-shop/commerce-platform/internal/models"
	repository "github.com/trendhub-shop/commerce-platform/internal/repositories"
	"github.com/trendhub-shop/commerce-platform/pkg/stripe"
)

// mockStore satisfies repository.Store over a bundle of mocked repositories.
// Transact just runs the callback against the same bundle, so tests see every
// repository call whether it happens inside a transaction or not.
type mockStore struct {
	repos *repository.Repos
}

func newMockStore() (*mockStore, *mockRepoBundle) {
	bundle := &mockRepoBundle{
		User:     new(MockUserRepository),
		Product:  new(MockProductRepository),
		Cart:     new(MockCartRepository),
		Coupon:   new(MockCouponRepository),
		Order:    new(MockOrderRepository),
		Settings: new(MockSettingsRepository),
	}

	store := &mockStore{repos: &repository.Repos{
		User:     bundle.User,
		Product:  bundle.Product,
		Cart:     bundle.Cart,
		Coupon:   bundle.Coupon,
		Order:    bundle.Order,
		Settings: bundle.Settings,
	}}

	return store, bundle
}

type mockRepoBundle struct {
	User     *MockUserRepository
	Product  *MockProductRepository
	Cart     *MockCartRepository
	Coupon   *MockCouponRepository
	Order    *MockOrderRepository
	Settings *MockSettingsRepository
}

func (b *mockRepoBundle) AssertExpectations(t mock.TestingT) {
	b.User.AssertExpectations(t)
	b.Product.AssertExpectations(t)
	b.Cart.AssertExpectations(t)
	b.Coupon.AssertExpectations(t)
	b.Order.AssertExpectations(t)
	b.Settings.AssertExpectations(t)
}

func (s *mockStore) Repos() *repository.Repos { return s.repos }

func (s *mockStore) Transact(ctx context.Context, fn func(r *repository.Repos) error) error {
	return fn(s.repos)
}

func (s *mockStore) DB() *sql.DB { return nil }

func (s *mockStore) Close() error { return nil }

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.User), args.Error(1)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) GetProductByIDForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) AdjustInventory(ctx context.Context, id int64, quantity int) error {
	args := m.Called(ctx, id, quantity)

	return args.Error(0)
}

type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) CreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartRepository) GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartRepository) GetCartByUserIDForUpdate(ctx context.Context, userID int64) (*models.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartRepository) UpdateTotals(ctx context.Context, cart *models.Cart) error {
	args := m.Called(ctx, cart)

	return args.Error(0)
}

func (m *MockCartRepository) SetCoupon(ctx context.Context, cartID int64, couponID *int64, discountedTotal float64) error {
	args := m.Called(ctx, cartID, couponID, discountedTotal)

	return args.Error(0)
}

func (m *MockCartRepository) GetItem(ctx context.Context, cartID, productID int64) (*models.CartItem, error) {
	args := m.Called(ctx, cartID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.CartItem), args.Error(1)
}

func (m *MockCartRepository) CreateItem(ctx context.Context, item *models.CartItem) error {
	args := m.Called(ctx, item)

	return args.Error(0)
}

func (m *MockCartRepository) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	args := m.Called(ctx, itemID, quantity)

	return args.Error(0)
}

func (m *MockCartRepository) DeleteItem(ctx context.Context, itemID int64) error {
	args := m.Called(ctx, itemID)

	return args.Error(0)
}

func (m *MockCartRepository) DeleteCart(ctx context.Context, cartID int64) error {
	args := m.Called(ctx, cartID)

	return args.Error(0)
}

type MockCouponRepository struct {
	mock.Mock
}

func (m *MockCouponRepository) GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockCouponRepository) GetCouponByCodeForUpdate(ctx context.Context, code string) (*models.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockCouponRepository) IncrementUsage(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)

	return args.Error(0)
}

func (m *MockOrderRepository) SetOrderNumber(ctx context.Context, orderID int64, orderNumber string) error {
	args := m.Called(ctx, orderID, orderNumber)

	return args.Error(0)
}

func (m *MockOrderRepository) SetStripeCheckoutID(ctx context.Context, orderID int64, sessionID string) error {
	args := m.Called(ctx, orderID, sessionID)

	return args.Error(0)
}

func (m *MockOrderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) GetOrderByIDForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) GetOrderBySessionForUpdate(ctx context.Context, sessionID string, orderID int64) (*models.Order, error) {
	args := m.Called(ctx, sessionID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdatePaymentState(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)

	return args.Error(0)
}

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetSettings(ctx context.Context) (*models.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Settings), args.Error(1)
}

func (m *MockSettingsRepository) UpdateSettings(ctx context.Context, settings *models.Settings) error {
	args := m.Called(ctx, settings)

	return args.Error(0)
}

type MockStripeClient struct {
	mock.Mock
}

func (m *MockStripeClient) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

func (m *MockStripeClient) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	args := m.Called(payload, signature)

	return args.Get(0).(stripe.Event), args.Error(1)
}

type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendOrderConfirmation(ctx context.Context, order *models.Order, user *models.User, settings *models.Settings) error {
	args := m.Called(ctx, order, user, settings)

	return args.Error(0)
}

func (m *MockEmailService) GetSendGridClient() *sendgridclient.Client {
	return nil
}

type MockSettingsProvider struct {
	mock.Mock
}

func (m *MockSettingsProvider) Get(ctx context.Context) (*models.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Settings), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, value any) (bool, error) {
	args := m.Called(ctx, key, value)

	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)

	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)

	return args.Error(0)
}

func (m *MockCache) Close() error { return nil }
