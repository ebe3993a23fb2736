package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/coupon"
	"github.com/stripe/stripe-go/v81/taxrate"
	"github.com/stripe/stripe-go/v81/webhook"
	"github.com/trendhub-shop/commerce-platform/internal/models"
)

type Event = stripe.Event

// CheckoutSession re-exports the provider's session type so callers only
// import this package.
type CheckoutSession = stripe.CheckoutSession

// EventKind is the closed set of provider notifications the reconciler acts
// on; everything else is acknowledged without action.
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventKindCheckoutCompleted
	EventKindCheckoutExpired
	EventKindAsyncPaymentFailed
)

// KindOf maps the provider's event type string onto EventKind.
func KindOf(event Event) EventKind {
	switch event.Type {
	case "checkout.session.completed":
		return EventKindCheckoutCompleted
	case "checkout.session.expired":
		return EventKindCheckoutExpired
	case "checkout.session.async_payment_failed":
		return EventKindAsyncPaymentFailed
	default:
		return EventKindUnknown
	}
}

// DecodeSession extracts the checkout session object carried by the event.
func DecodeSession(event Event) (*stripe.CheckoutSession, error) {
	var sess stripe.CheckoutSession

	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	return &sess, nil
}

// OrderIDFromSession reads the order id the orchestrator stamped into the
// session metadata at creation time.
func OrderIDFromSession(sess *stripe.CheckoutSession) (int64, error) {
	raw, ok := sess.Metadata["orderId"]
	if !ok || raw == "" {
		return 0, errors.New("order id missing in session metadata")
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order id in session metadata: %w", err)
	}

	return id, nil
}

// CheckoutItem is one order line presented on the hosted payment page.
type CheckoutItem struct {
	Name        string
	Description string
	ImageCover  string
	Amount      float64
	Quantity    int
}

type CheckoutSessionParams struct {
	Items         []CheckoutItem
	OrderID       int64
	ShippingPrice float64
	TaxRate       float64
	CustomerEmail string
	Coupon        *models.Coupon
}

// Client is the boundary to the payment provider.
type Client interface {
	CreateCheckoutSession(params *CheckoutSessionParams) (*stripe.CheckoutSession, error)
	VerifyWebhookSignature(payload []byte, signature string) (Event, error)
}

type stripeClient struct {
	webhookSecret string
	currency      string
	successURL    string
	cancelURL     string
}

func NewStripeClient(apiKey, webhookSecret, currency, successURL, cancelURL string) Client {
	stripe.Key = apiKey

	return &stripeClient{
		webhookSecret: webhookSecret,
		currency:      currency,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateCheckoutSession builds a hosted checkout for the given order lines,
// attaching shipping as a fixed fee, tax as a rate on every line, and a
// one-time provider coupon mirroring the cart's coupon.
func (s *stripeClient) CreateCheckoutSession(params *CheckoutSessionParams) (*stripe.CheckoutSession, error) {

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.Items))

	for _, item := range params.Items {

		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}

		if item.Description != "" {
			productData.Description = stripe.String(item.Description)
		}

		if item.ImageCover != "" {
			productData.Images = stripe.StringSlice([]string{item.ImageCover})
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(s.currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(toCents(item.Amount)),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	sessionParams := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.successURL),
		CancelURL:          stripe.String(s.cancelURL),
	}

	sessionParams.AddMetadata("orderId", strconv.FormatInt(params.OrderID, 10))

	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	if params.Coupon != nil {
		providerCoupon, err := s.createOneTimeCoupon(params.Coupon)
		if err != nil {
			return nil, err
		}

		sessionParams.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(providerCoupon.ID)},
		}
	}

	if params.ShippingPrice > 0 {
		sessionParams.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{
			{
				ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
					Type: stripe.String("fixed_amount"),
					FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
						Amount:   stripe.Int64(toCents(params.ShippingPrice)),
						Currency: stripe.String(s.currency),
					},
					DisplayName: stripe.String("Shipping"),
				},
			},
		}
	}

	if params.TaxRate > 0 {
		rate, err := taxrate.New(&stripe.TaxRateParams{
			DisplayName: stripe.String("Tax"),
			Percentage:  stripe.Float64(params.TaxRate),
			Inclusive:   stripe.Bool(false),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create tax rate: %w", err)
		}

		for _, item := range sessionParams.LineItems {
			item.TaxRates = stripe.StringSlice([]string{rate.ID})
		}
	}

	return session.New(sessionParams)
}

// createOneTimeCoupon mirrors the cart coupon on the provider side, valid
// for this checkout only.
func (s *stripeClient) createOneTimeCoupon(c *models.Coupon) (*stripe.Coupon, error) {
	couponParams := &stripe.CouponParams{
		Name:     stripe.String("Coupon: " + c.Code),
		Duration: stripe.String(string(stripe.CouponDurationOnce)),
	}

	switch c.Type {
	case models.CouponTypePercentage:
		couponParams.PercentOff = stripe.Float64(c.Discount)
	case models.CouponTypeFixed:
		couponParams.AmountOff = stripe.Int64(toCents(c.Discount))
		couponParams.Currency = stripe.String(s.currency)
	}

	providerCoupon, err := coupon.New(couponParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider coupon: %w", err)
	}

	return providerCoupon, nil
}

// VerifyWebhookSignature implements Client.
func (s *stripeClient) VerifyWebhookSignature(payload []byte, signature string) (Event, error) {
	if s.webhookSecret == "" {
		return Event{}, errors.New("webhook secret not configured")
	}

	return webhook.ConstructEvent(payload, signature, s.webhookSecret)
}
