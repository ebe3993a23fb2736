package sendgrid

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/trendhub-shop/commerce-platform/internal/models"
)

// EmailService sends the order confirmation. Callers treat failures as
// log-only; nothing in the checkout flow blocks on mail delivery.
type EmailService interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, user *models.User, settings *models.Settings) error
	GetSendGridClient() *sendgrid.Client
}

type emailService struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewEmailService(apiKey, fromEmail, fromName string) EmailService {
	return &emailService{client: sendgrid.NewSendClient(apiKey), fromEmail: fromEmail, fromName: fromName}
}

// GetSendGridClient exposes the underlying client so tests can point it at a
// mock server.
func (e *emailService) GetSendGridClient() *sendgrid.Client {
	return e.client
}

func (e *emailService) SendOrderConfirmation(ctx context.Context, order *models.Order, user *models.User, settings *models.Settings) error {

	if user == nil || user.Email == "" {
		return fmt.Errorf("missing recipient email for order %d", order.ID)
	}

	siteName := settings.StoreName
	if siteName == "" {
		siteName = "Online Store"
	}

	supportEmail := settings.StoreEmail
	if supportEmail == "" {
		supportEmail = e.fromEmail
	}

	from := mail.NewEmail(e.fromName, e.fromEmail)
	to := mail.NewEmail(user.Name, user.Email)

	subject := "Order Confirmation"

	plain := buildPlainBody(order, siteName, supportEmail, settings.StorePhone)

	message := mail.NewSingleEmail(from, subject, to, plain, buildHTMLBody(order, siteName, supportEmail, settings))

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send order confirmation: %w", err)
	}

	if response.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("order confirmation rejected with status %d: %s", response.StatusCode, response.Body)
	}

	return nil
}

func buildPlainBody(order *models.Order, siteName, supportEmail, supportPhone string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Thank you for your order at %s!\n\n", siteName)
	fmt.Fprintf(&b, "Order number: %s\n", order.OrderNumber)

	for _, item := range order.Items {
		name := fmt.Sprintf("Product %d", item.ProductID)
		if item.Product != nil {
			name = item.Product.Name
		}

		fmt.Fprintf(&b, "- %s x%d (%.2f each)\n", name, item.Quantity, item.UnitPrice)
	}

	fmt.Fprintf(&b, "\nTax: %.2f\nShipping: %.2f\nTotal: %.2f\n", order.TaxPrice, order.ShippingPrice, order.TotalOrderPrice)
	fmt.Fprintf(&b, "\nShipping to: %s\n", order.ShippingAddress)
	fmt.Fprintf(&b, "\nQuestions? Contact us at %s", supportEmail)

	if supportPhone != "" {
		fmt.Fprintf(&b, " or %s", supportPhone)
	}

	b.WriteString(".\n")

	return b.String()
}

func buildHTMLBody(order *models.Order, siteName, supportEmail string, settings *models.Settings) string {
	var b strings.Builder

	b.WriteString("<html><body>")

	if settings.StoreLogo != "" {
		fmt.Fprintf(&b, `<img src="%s" alt="%s" height="48"/>`, settings.StoreLogo, siteName)
	}

	fmt.Fprintf(&b, "<h2>Thank you for your order at %s!</h2>", siteName)
	fmt.Fprintf(&b, "<p>Order number: <strong>%s</strong></p><ul>", order.OrderNumber)

	for _, item := range order.Items {
		name := fmt.Sprintf("Product %d", item.ProductID)
		if item.Product != nil {
			name = item.Product.Name
		}

		fmt.Fprintf(&b, "<li>%s &times; %d (%.2f each)</li>", name, item.Quantity, item.UnitPrice)
	}

	fmt.Fprintf(&b, "</ul><p>Tax: %.2f<br/>Shipping: %.2f<br/><strong>Total: %.2f</strong></p>",
		order.TaxPrice, order.ShippingPrice, order.TotalOrderPrice)
	fmt.Fprintf(&b, "<p>Shipping to: %s</p>", order.ShippingAddress)
	fmt.Fprintf(&b, "<p>Questions? Contact us at %s.</p>", supportEmail)
	b.WriteString("</body></html>")

	return b.String()
}
