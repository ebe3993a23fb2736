package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/trendhub-shop/commerce-platform/internal/errors"
	"github.com/trendhub-shop/commerce-platform/internal/metrics"
	"github.com/trendhub-shop/commerce-platform/internal/models"
	"github.com/trendhub-shop/commerce-platform/internal/pricing"
	repository "github.com/trendhub-shop/commerce-platform/internal/repositories"
	"github.com/trendhub-shop/commerce-platform/pkg/sendgrid"
	"github.com/trendhub-shop/commerce-platform/pkg/stripe"
)

type OrderService interface {
	Checkout(ctx context.Context, userID int64, method models.PaymentMethod, req *models.CreateOrderRequest) (*models.CheckoutResponse, error)
	UpdateCashOrderStatus(ctx context.Context, orderID int64, req *models.UpdateCashOrderRequest) (*models.Order, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]models.Order, error)
}

type orderService struct {
	store     repository.Store
	stripe    stripe.Client
	email     sendgrid.EmailService
	settings  SettingsProvider
	sanitizer *bluemonday.Policy
}

func NewOrderService(store repository.Store, stripeClient stripe.Client, email sendgrid.EmailService, settings SettingsProvider) OrderService {
	return &orderService{
		store:     store,
		stripe:    stripeClient,
		email:     email,
		settings:  settings,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// GenerateOrderNumber derives the human-facing order reference from the row
// id and the creation date, e.g. ORD-20250307-00000042.
func GenerateOrderNumber(orderID int64, at time.Time) string {
	return fmt.Sprintf("ORD-%s-%08d", at.Format("20060102"), orderID)
}

// Checkout turns the user's cart into an order. Cash orders are marked
// delivered immediately and the cart is consumed; card orders stay pending
// and get a hosted payment session, with the cart consumed only once the
// provider confirms payment via webhook.
func (s *orderService) Checkout(ctx context.Context, userID int64, method models.PaymentMethod, req *models.CreateOrderRequest) (*models.CheckoutResponse, error) {

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	var (
		order *models.Order
		cart  *models.Cart
		user  *models.User
	)

	err = s.store.Transact(ctx, func(r *repository.Repos) error {

		cart, err = r.Cart.GetCartByUserIDForUpdate(ctx, userID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFoundError("Don't have any cart yet!").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch cart").WithError(err)
		}

		if len(cart.Items) == 0 {
			return errors.BadRequestError("Cannot checkout with an empty cart")
		}

		if cart.CouponID != nil {
			cart.Coupon, err = r.Coupon.GetCouponByID(ctx, *cart.CouponID)
			if err != nil {
				return errors.DatabaseError("Failed to fetch coupon").WithError(err)
			}
		}

		user, err = r.User.GetUserByID(ctx, userID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFoundError("User not found").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch user").WithError(err)
		}

		address := req.ShippingAddress
		if address == "" {
			address = user.Address
		}

		if address == "" {
			return errors.BadRequestError("Shipping address is required")
		}

		address = s.sanitizer.Sanitize(address)

		cartTotal := pricing.CheckoutTotal(cart)
		taxPrice, shippingPrice, totalOrderPrice := pricing.OrderTotals(cartTotal, settings)

		now := time.Now()

		order = &models.Order{
			UserID:            userID,
			TaxPrice:          taxPrice,
			ShippingPrice:     shippingPrice,
			TotalOrderPrice:   totalOrderPrice,
			PaymentMethodType: method,
			ShippingAddress:   address,
			Status:            models.OrderStatusPending,
		}

		for _, item := range cart.Items {
			order.Items = append(order.Items, models.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: pricing.UnitPrice(item.Product),
				Product:   item.Product,
			})
		}

		if err := r.Order.CreateOrder(ctx, order); err != nil {
			return errors.DatabaseError("Failed to create order").WithError(err)
		}

		order.OrderNumber = GenerateOrderNumber(order.ID, now)

		if err := r.Order.SetOrderNumber(ctx, order.ID, order.OrderNumber); err != nil {
			return errors.DatabaseError("Failed to set order number").WithError(err)
		}

		if method == models.PaymentMethodCash {
			order.IsDelivered = true
			order.DeliveredAt = &now

			if err := r.Order.UpdatePaymentState(ctx, order); err != nil {
				return errors.DatabaseError("Failed to update order").WithError(err)
			}

			if err := r.Cart.DeleteCart(ctx, cart.ID); err != nil {
				return errors.DatabaseError("Failed to clear cart").WithError(err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if method == models.PaymentMethodCash {
		s.sendConfirmationEmail(ctx, order, user, settings)

		return &models.CheckoutResponse{Order: order}, nil
	}

	session, err := s.createPaymentSession(order, cart, user, settings)
	if err != nil {
		return nil, err
	}

	order.StripeCheckoutID = session.ID

	if err := s.store.Repos().Order.SetStripeCheckoutID(ctx, order.ID, session.ID); err != nil {
		return nil, errors.DatabaseError("Failed to store checkout session").WithError(err)
	}

	return &models.CheckoutResponse{SessionURL: session.URL, Order: order}, nil
}

// createPaymentSession runs outside the order transaction so a slow provider
// call never holds row locks.
func (s *orderService) createPaymentSession(order *models.Order, cart *models.Cart, user *models.User, settings *models.Settings) (*stripe.CheckoutSession, error) {

	items := make([]stripe.CheckoutItem, 0, len(order.Items))

	for _, item := range order.Items {
		line := stripe.CheckoutItem{
			Amount:   item.UnitPrice,
			Quantity: item.Quantity,
		}

		if item.Product != nil {
			line.Name = item.Product.Name
			line.Description = item.Product.Description
			line.ImageCover = item.Product.ImageCover
		}

		items = append(items, line)
	}

	params := &stripe.CheckoutSessionParams{
		Items:         items,
		OrderID:       order.ID,
		ShippingPrice: order.ShippingPrice,
		CustomerEmail: user.Email,
		Coupon:        cart.Coupon,
	}

	if settings.TaxEnabled {
		params.TaxRate = settings.TaxRate
	}

	session, err := s.stripe.CreateCheckoutSession(params)
	if err != nil {
		return nil, errors.ThirdPartyError("Failed to create payment session").WithError(err)
	}

	return session, nil
}

// UpdateCashOrderStatus settles a cash-on-delivery order out of band. Paid
// orders and cancelled orders are terminal for this operation.
func (s *orderService) UpdateCashOrderStatus(ctx context.Context, orderID int64, req *models.UpdateCashOrderRequest) (*models.Order, error) {

	var order *models.Order

	err := s.store.Transact(ctx, func(r *repository.Repos) error {

		var err error

		order, err = r.Order.GetOrderByIDForUpdate(ctx, orderID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFoundError("Order not found").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch order").WithError(err)
		}

		if order.IsPaid {
			return errors.InvalidStateError("Order already paid!")
		}

		if order.PaymentMethodType != models.PaymentMethodCash {
			return errors.InvalidStateError("Payment method is not valid for this operation!")
		}

		if order.Status == models.OrderStatusCancelled {
			return errors.InvalidStateError("Order already cancelled!")
		}

		if req.Status == string(models.OrderStatusCancelled) {
			order.Status = models.OrderStatusCancelled
			order.IsPaid = false
			order.PaidAt = nil
			order.IsDelivered = false
			order.DeliveredAt = nil

			if err := r.Order.UpdatePaymentState(ctx, order); err != nil {
				return errors.DatabaseError("Failed to update order").WithError(err)
			}

			return nil
		}

		s.decrementInventory(ctx, r, order)

		now := time.Now()
		order.Status = models.OrderStatusPaid
		order.IsPaid = true
		order.PaidAt = &now
		// Overwrites the delivered flag set at cash-checkout creation.
		order.IsDelivered = false
		order.DeliveredAt = nil

		if err := r.Order.UpdatePaymentState(ctx, order); err != nil {
			return errors.DatabaseError("Failed to update order").WithError(err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// HandleWebhook reconciles a provider notification against the local order.
// Every path is a no-op unless the order is still pending, so redelivered
// events and out-of-order events cannot rewrite settled state.
func (s *orderService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {

	event, err := s.stripe.VerifyWebhookSignature(payload, signature)
	if err != nil {
		return errors.InvalidSignatureError("Webhook signature verification failed").WithError(err)
	}

	kind := stripe.KindOf(event)

	if kind == stripe.EventKindUnknown {
		slog.Info("Ignoring webhook event", slog.String("type", string(event.Type)))

		return nil
	}

	sess, err := stripe.DecodeSession(event)
	if err != nil {
		return errors.BadRequestError("Malformed webhook payload").WithError(err)
	}

	orderID, err := stripe.OrderIDFromSession(sess)
	if err != nil {
		return errors.BadRequestError("Webhook session missing order reference").WithError(err)
	}

	switch kind {
	case stripe.EventKindCheckoutCompleted:
		return s.reconcilePaymentSuccess(ctx, sess.ID, orderID)
	default:
		return s.reconcilePaymentFailure(ctx, sess, orderID)
	}
}

func (s *orderService) reconcilePaymentSuccess(ctx context.Context, sessionID string, orderID int64) error {

	var order *models.Order

	err := s.store.Transact(ctx, func(r *repository.Repos) error {

		var err error

		order, err = r.Order.GetOrderBySessionForUpdate(ctx, sessionID, orderID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.BadRequestError("Order not found for checkout session").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch order").WithError(err)
		}

		if order.Status != models.OrderStatusPending {
			slog.Info("Skipping webhook for settled order",
				slog.Int64("orderId", order.ID),
				slog.String("status", string(order.Status)))

			order = nil

			return nil
		}

		now := time.Now()
		order.Status = models.OrderStatusPaid
		order.IsPaid = true
		order.PaidAt = &now
		order.IsDelivered = true
		order.DeliveredAt = &now

		if err := r.Order.UpdatePaymentState(ctx, order); err != nil {
			return errors.DatabaseError("Failed to update order").WithError(err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if order != nil {
		s.runPostPaymentEffects(ctx, order)
	}

	return nil
}

func (s *orderService) reconcilePaymentFailure(ctx context.Context, sess *stripe.CheckoutSession, orderID int64) error {

	return s.store.Transact(ctx, func(r *repository.Repos) error {

		order, err := r.Order.GetOrderBySessionForUpdate(ctx, sess.ID, orderID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.BadRequestError("Order not found for checkout session").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch order").WithError(err)
		}

		if order.Status != models.OrderStatusPending {
			slog.Info("Skipping webhook for settled order",
				slog.Int64("orderId", order.ID),
				slog.String("status", string(order.Status)))

			return nil
		}

		// An expired session means the customer abandoned checkout; a failure
		// after the expiry window means the payment itself was declined.
		order.Status = models.OrderStatusFailed
		if sess.ExpiresAt > 0 && time.Unix(sess.ExpiresAt, 0).Before(time.Now()) {
			order.Status = models.OrderStatusCancelled
		}

		if err := r.Order.UpdatePaymentState(ctx, order); err != nil {
			return errors.DatabaseError("Failed to update order").WithError(err)
		}

		return nil
	})
}

type sideEffectResult struct {
	step string
	err  error
}

// runPostPaymentEffects executes the three post-payment side effects
// concurrently and collects their outcomes. The payment state is already
// committed; a failing side effect is logged and never surfaces to the
// provider, so the webhook is still acknowledged.
func (s *orderService) runPostPaymentEffects(ctx context.Context, order *models.Order) []sideEffectResult {

	results := make(chan sideEffectResult, 3)

	var wg sync.WaitGroup

	wg.Add(3)

	go func() {
		defer wg.Done()

		results <- sideEffectResult{step: "confirmation_email", err: s.confirmationEmailEffect(ctx, order)}
	}()

	go func() {
		defer wg.Done()

		results <- sideEffectResult{step: "inventory", err: s.inventoryEffect(ctx, order)}
	}()

	go func() {
		defer wg.Done()

		results <- sideEffectResult{step: "cart_cleanup", err: s.cartCleanupEffect(ctx, order.UserID)}
	}()

	wg.Wait()
	close(results)

	collected := make([]sideEffectResult, 0, 3)

	for res := range results {
		collected = append(collected, res)

		if res.err != nil {
			metrics.SideEffectFailures.WithLabelValues(res.step).Inc()
			slog.Error("Post-payment side effect failed",
				slog.Int64("orderId", order.ID),
				slog.String("step", res.step),
				slog.String("error", res.err.Error()))
		}
	}

	return collected
}

func (s *orderService) confirmationEmailEffect(ctx context.Context, order *models.Order) error {

	user, err := s.store.Repos().User.GetUserByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("failed to fetch user for confirmation email: %w", err)
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch settings for confirmation email: %w", err)
	}

	return s.email.SendOrderConfirmation(ctx, order, user, settings)
}

// inventoryEffect decrements stock per order line. A line whose write fails
// is logged and skipped; the rest of the order is still applied. There is no
// stock-sufficiency check here, so quantity can go negative.
func (s *orderService) inventoryEffect(ctx context.Context, order *models.Order) error {

	var failed int

	for _, item := range order.Items {
		if err := s.store.Repos().Product.AdjustInventory(ctx, item.ProductID, item.Quantity); err != nil {
			failed++

			slog.Error("Failed to adjust inventory",
				slog.Int64("orderId", order.ID),
				slog.Int64("productId", item.ProductID),
				slog.String("error", err.Error()))
		}
	}

	if failed > 0 {
		return fmt.Errorf("inventory adjustment failed for %d of %d items", failed, len(order.Items))
	}

	return nil
}

func (s *orderService) cartCleanupEffect(ctx context.Context, userID int64) error {

	return s.store.Transact(ctx, func(r *repository.Repos) error {

		cart, err := r.Cart.GetCartByUserIDForUpdate(ctx, userID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return nil
			}

			return fmt.Errorf("failed to fetch cart for cleanup: %w", err)
		}

		return r.Cart.DeleteCart(ctx, cart.ID)
	})
}

// sendConfirmationEmail is the synchronous variant used by cash checkout;
// failures are logged, never returned.
func (s *orderService) sendConfirmationEmail(ctx context.Context, order *models.Order, user *models.User, settings *models.Settings) {

	if err := s.email.SendOrderConfirmation(ctx, order, user, settings); err != nil {
		slog.Error("Failed to send order confirmation email",
			slog.Int64("orderId", order.ID),
			slog.String("error", err.Error()))
	}
}

// decrementInventory applies stock changes for a cash settlement inside the
// caller's transaction. Lines without stock are logged and skipped.
func (s *orderService) decrementInventory(ctx context.Context, r *repository.Repos, order *models.Order) {

	for _, item := range order.Items {
		if err := r.Product.AdjustInventory(ctx, item.ProductID, item.Quantity); err != nil {
			slog.Error("Failed to adjust inventory",
				slog.Int64("orderId", order.ID),
				slog.Int64("productId", item.ProductID),
				slog.String("error", err.Error()))
		}
	}
}

func (s *orderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {

	order, err := s.store.Repos().Order.GetOrderByID(ctx, orderID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Order not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to fetch order").WithError(err)
	}

	if order.UserID != userID {
		return nil, errors.NotFoundError("Order not found")
	}

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {

	orders, err := s.store.Repos().Order.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to fetch orders").WithError(err)
	}

	return orders, nil
}
