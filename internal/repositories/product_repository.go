package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trendhub-shop/commerce-platform/internal/models"
	"github.com/trendhub-shop/commerce-platform/internal/utils"
)

// ProductRepository reads catalog rows and mutates only the two inventory
// fields the checkout core owns after payment: quantity and sold.
type ProductRepository interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductByIDForUpdate(ctx context.Context, id int64) (*models.Product, error)
	AdjustInventory(ctx context.Context, id int64, quantity int) error
}

type productRepository struct {
	db DBTX
}

func NewProductRepo(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, COALESCE(description, ''), COALESCE(image_cover, ''),
		price, price_after_discount, quantity, sold, status, created_at, updated_at`

func (r *productRepository) getProduct(ctx context.Context, query string, id int64) (*models.Product, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	product := &models.Product{}

	err := r.db.QueryRowContext(dbCtx, query, id).Scan(
		&product.ID, &product.Name, &product.Description, &product.ImageCover,
		&product.Price, &product.PriceAfterDiscount, &product.Quantity, &product.Sold,
		&product.Status, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return product, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	return r.getProduct(ctx, query, id)
}

// GetProductByIDForUpdate takes a row lock; only meaningful inside a
// Store.Transact block.
func (r *productRepository) GetProductByIDForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	return r.getProduct(ctx, query, id)
}

// AdjustInventory decrements stock and bumps the sold counter in one
// statement so concurrent decrements cannot interleave.
func (r *productRepository) AdjustInventory(ctx context.Context, id int64, quantity int) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE products
		SET quantity = quantity - $1, sold = sold + $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(dbCtx, query, quantity, id)
	if err != nil {
		return fmt.Errorf("failed to adjust inventory: %w", err)
	}

	updatedRows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get updated rows: %w", err)
	}

	if updatedRows == 0 {
		return sql.ErrNoRows
	}

	return nil
}
