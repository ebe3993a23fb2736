package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trendhub-shop/commerce-platform/internal/models"
	"github.com/trendhub-shop/commerce-platform/internal/utils"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	SetOrderNumber(ctx context.Context, orderID int64, orderNumber string) error
	SetStripeCheckoutID(ctx context.Context, orderID int64, sessionID string) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIDForUpdate(ctx context.Context, id int64) (*models.Order, error)
	GetOrderBySessionForUpdate(ctx context.Context, sessionID string, orderID int64) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)
	UpdatePaymentState(ctx context.Context, order *models.Order) error
}

type orderRepository struct {
	db DBTX
}

func NewOrderRepo(db DBTX) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO orders (user_id, tax_price, shipping_price, total_order_price,
			payment_method_type, is_paid, is_delivered, shipping_address, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(dbCtx, query,
		order.UserID, order.TaxPrice, order.ShippingPrice, order.TotalOrderPrice,
		order.PaymentMethodType, order.IsPaid, order.IsDelivered, order.ShippingAddress, order.Status).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {

		item := &order.Items[i]
		item.OrderID = order.ID

		itemQuery := `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING id, created_at
		`

		err := r.db.QueryRowContext(dbCtx, itemQuery, order.ID, item.ProductID, item.Quantity, item.UnitPrice).
			Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

// SetOrderNumber persists the number derived from the now-known numeric id.
func (r *orderRepository) SetOrderNumber(ctx context.Context, orderID int64, orderNumber string) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `UPDATE orders SET order_number = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(dbCtx, query, orderNumber, orderID)
	if err != nil {
		return fmt.Errorf("failed to set order number: %w", err)
	}

	return requireRowsAffected(result)
}

func (r *orderRepository) SetStripeCheckoutID(ctx context.Context, orderID int64, sessionID string) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `UPDATE orders SET stripe_checkout_id = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(dbCtx, query, sessionID, orderID)
	if err != nil {
		return fmt.Errorf("failed to set stripe checkout id: %w", err)
	}

	return requireRowsAffected(result)
}

const orderColumns = `id, COALESCE(order_number, ''), user_id, tax_price, shipping_price, total_order_price,
		payment_method_type, is_paid, paid_at, is_delivered, delivered_at,
		COALESCE(shipping_address, ''), COALESCE(stripe_checkout_id, ''), status, created_at, updated_at`

func (r *orderRepository) scanOrder(ctx context.Context, row *sql.Row) (*models.Order, error) {
	order := &models.Order{}

	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &order.TaxPrice, &order.ShippingPrice,
		&order.TotalOrderPrice, &order.PaymentMethodType, &order.IsPaid, &order.PaidAt,
		&order.IsDelivered, &order.DeliveredAt, &order.ShippingAddress, &order.StripeCheckoutID,
		&order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, order *models.Order) error {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price, oi.created_at,
			p.id, p.name, COALESCE(p.description, ''), COALESCE(p.image_cover, ''),
			p.price, p.price_after_discount, p.quantity, p.sold, p.status, p.created_at, p.updated_at
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`

	rows, err := r.db.QueryContext(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}

	defer rows.Close()

	var items []models.OrderItem

	for rows.Next() {

		var item models.OrderItem

		product := &models.Product{}

		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.CreatedAt,
			&product.ID, &product.Name, &product.Description, &product.ImageCover,
			&product.Price, &product.PriceAfterDiscount, &product.Quantity, &product.Sold,
			&product.Status, &product.CreatedAt, &product.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}

		item.Product = product

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate order items: %w", err)
	}

	order.Items = items

	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	return r.scanOrder(dbCtx, r.db.QueryRowContext(dbCtx, query, id))
}

func (r *orderRepository) GetOrderByIDForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	return r.scanOrder(dbCtx, r.db.QueryRowContext(dbCtx, query, id))
}

// GetOrderBySessionForUpdate requires the (session id, order id) pair from
// the webhook to match the same row, guarding against cross-order session
// confusion.
func (r *orderRepository) GetOrderBySessionForUpdate(ctx context.Context, sessionID string, orderID int64) (*models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE stripe_checkout_id = $1 AND id = $2 FOR UPDATE`

	return r.scanOrder(dbCtx, r.db.QueryRowContext(dbCtx, query, sessionID, orderID))
}

func (r *orderRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(dbCtx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	defer rows.Close()

	var orders []models.Order

	for rows.Next() {

		var order models.Order

		err := rows.Scan(
			&order.ID, &order.OrderNumber, &order.UserID, &order.TaxPrice, &order.ShippingPrice,
			&order.TotalOrderPrice, &order.PaymentMethodType, &order.IsPaid, &order.PaidAt,
			&order.IsDelivered, &order.DeliveredAt, &order.ShippingAddress, &order.StripeCheckoutID,
			&order.Status, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	for i := range orders {
		if err := r.loadItems(dbCtx, &orders[i]); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// UpdatePaymentState writes the payment/delivery flags and the status in one
// statement; every state-machine transition lands here.
func (r *orderRepository) UpdatePaymentState(ctx context.Context, order *models.Order) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE orders
		SET is_paid = $1, paid_at = $2, is_delivered = $3, delivered_at = $4, status = $5, updated_at = NOW()
		WHERE id = $6
	`

	result, err := r.db.ExecContext(dbCtx, query,
		order.IsPaid, order.PaidAt, order.IsDelivered, order.DeliveredAt, order.Status, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update order state: %w", err)
	}

	return requireRowsAffected(result)
}
