package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trendhub-shop/commerce-platform/internal/models"
	"github.com/trendhub-shop/commerce-platform/internal/utils"
)

type CouponRepository interface {
	GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error)
	GetCouponByCodeForUpdate(ctx context.Context, code string) (*models.Coupon, error)
	IncrementUsage(ctx context.Context, id int64) error
}

type couponRepository struct {
	db DBTX
}

func NewCouponRepo(db DBTX) CouponRepository {
	return &couponRepository{db: db}
}

const couponColumns = `id, code, discount, type, expiration_date, max_usage, current_usage, created_at, updated_at`

func (r *couponRepository) scanCoupon(row *sql.Row) (*models.Coupon, error) {
	coupon := &models.Coupon{}

	err := row.Scan(
		&coupon.ID, &coupon.Code, &coupon.Discount, &coupon.Type,
		&coupon.ExpirationDate, &coupon.MaxUsage, &coupon.CurrentUsage,
		&coupon.CreatedAt, &coupon.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	return coupon, nil
}

func (r *couponRepository) GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	return r.scanCoupon(r.db.QueryRowContext(dbCtx, query, id))
}

// GetCouponByCodeForUpdate locks the coupon row so concurrent applies of the
// same code serialize; call inside Store.Transact.
func (r *couponRepository) GetCouponByCodeForUpdate(ctx context.Context, code string) (*models.Coupon, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 FOR UPDATE`

	return r.scanCoupon(r.db.QueryRowContext(dbCtx, query, code))
}

// IncrementUsage consumes one usage, refusing to pass the cap even if the
// caller's read was stale.
func (r *couponRepository) IncrementUsage(ctx context.Context, id int64) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE coupons
		SET current_usage = current_usage + 1, updated_at = NOW()
		WHERE id = $1 AND current_usage < max_usage
	`

	result, err := r.db.ExecContext(dbCtx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", err)
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
