package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trendhub-shop/commerce-platform/internal/models"
	"github.com/trendhub-shop/commerce-platform/internal/utils"
)

type CartRepository interface {
	CreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error)
	GetCartByUserIDForUpdate(ctx context.Context, userID int64) (*models.Cart, error)
	UpdateTotals(ctx context.Context, cart *models.Cart) error
	SetCoupon(ctx context.Context, cartID int64, couponID *int64, discountedTotal float64) error
	GetItem(ctx context.Context, cartID, productID int64) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error
	DeleteItem(ctx context.Context, itemID int64) error
	DeleteCart(ctx context.Context, cartID int64) error
}

type cartRepository struct {
	db DBTX
}

func NewCartRepo(db DBTX) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) CreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO carts (user_id, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	cart := &models.Cart{UserID: userID}

	err := r.db.QueryRowContext(dbCtx, query, userID).Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) getCart(ctx context.Context, query string, userID int64) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	cart := &models.Cart{}

	err := r.db.QueryRowContext(dbCtx, query, userID).Scan(
		&cart.ID, &cart.UserID, &cart.TotalPrice, &cart.TotalPriceAfterDiscount,
		&cart.CouponID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if err := r.loadItems(dbCtx, cart); err != nil {
		return nil, err
	}

	return cart, nil
}

func (r *cartRepository) loadItems(ctx context.Context, cart *models.Cart) error {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
			p.id, p.name, COALESCE(p.description, ''), COALESCE(p.image_cover, ''),
			p.price, p.price_after_discount, p.quantity, p.sold, p.status, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
	`

	rows, err := r.db.QueryContext(ctx, query, cart.ID)
	if err != nil {
		return fmt.Errorf("failed to get cart items: %w", err)
	}

	defer rows.Close()

	var items []models.CartItem

	for rows.Next() {

		var item models.CartItem

		product := &models.Product{}

		err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
			&product.ID, &product.Name, &product.Description, &product.ImageCover,
			&product.Price, &product.PriceAfterDiscount, &product.Quantity, &product.Sold,
			&product.Status, &product.CreatedAt, &product.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to scan cart item: %w", err)
		}

		item.Product = product

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate cart items: %w", err)
	}

	cart.Items = items

	return nil
}

const cartColumns = `id, user_id, total_price, total_price_after_discount, coupon_id, created_at, updated_at`

func (r *cartRepository) GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1`

	return r.getCart(ctx, query, userID)
}

// GetCartByUserIDForUpdate locks the cart row for the duration of the
// surrounding transaction so total recomputation cannot lose updates.
func (r *cartRepository) GetCartByUserIDForUpdate(ctx context.Context, userID int64) (*models.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1 FOR UPDATE`

	return r.getCart(ctx, query, userID)
}

func (r *cartRepository) UpdateTotals(ctx context.Context, cart *models.Cart) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE carts
		SET total_price = $1, total_price_after_discount = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(dbCtx, query, cart.TotalPrice, cart.TotalPriceAfterDiscount, cart.ID)
	if err != nil {
		return fmt.Errorf("failed to update cart totals: %w", err)
	}

	return requireRowsAffected(result)
}

func (r *cartRepository) SetCoupon(ctx context.Context, cartID int64, couponID *int64, discountedTotal float64) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE carts
		SET coupon_id = $1, total_price_after_discount = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(dbCtx, query, couponID, discountedTotal, cartID)
	if err != nil {
		return fmt.Errorf("failed to set cart coupon: %w", err)
	}

	return requireRowsAffected(result)
}

func (r *cartRepository) GetItem(ctx context.Context, cartID, productID int64) (*models.CartItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, cart_id, product_id, quantity, created_at, updated_at
		FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
	`

	item := &models.CartItem{}

	err := r.db.QueryRowContext(dbCtx, query, cartID, productID).Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}

	return item, nil
}

func (r *cartRepository) CreateItem(ctx context.Context, item *models.CartItem) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRowContext(dbCtx, query, item.CartID, item.ProductID, item.Quantity).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

func (r *cartRepository) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(dbCtx, query, quantity, itemID)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	return requireRowsAffected(result)
}

func (r *cartRepository) DeleteItem(ctx context.Context, itemID int64) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	result, err := r.db.ExecContext(dbCtx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	return requireRowsAffected(result)
}

// DeleteCart removes the items then the cart row itself.
func (r *cartRepository) DeleteCart(ctx context.Context, cartID int64) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(dbCtx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	result, err := r.db.ExecContext(dbCtx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	return requireRowsAffected(result)
}

func requireRowsAffected(result sql.Result) error {
	updatedRows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get updated rows: %w", err)
	}

	if updatedRows == 0 {
		return sql.ErrNoRows
	}

	return nil
}
