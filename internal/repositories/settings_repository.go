package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trendhub-shop/commerce-platform/internal/models"
	"github.com/trendhub-shop/commerce-platform/internal/utils"
)

// SettingsRepository serves the store-wide singleton row. Reads happen on
// every checkout; the write path belongs to the admin surface.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdateSettings(ctx context.Context, settings *models.Settings) error
}

type settingsRepository struct {
	db DBTX
}

func NewSettingsRepo(db DBTX) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetSettings(ctx context.Context) (*models.Settings, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, COALESCE(store_name, ''), COALESCE(store_email, ''), COALESCE(store_phone, ''),
			COALESCE(store_address, ''), COALESCE(store_logo, ''),
			tax_rate, tax_enabled, shipping_rate, shipping_enabled, created_at, updated_at
		FROM settings
		ORDER BY id
		LIMIT 1
	`

	settings := &models.Settings{}

	err := r.db.QueryRowContext(dbCtx, query).Scan(
		&settings.ID, &settings.StoreName, &settings.StoreEmail, &settings.StorePhone,
		&settings.StoreAddress, &settings.StoreLogo,
		&settings.TaxRate, &settings.TaxEnabled, &settings.ShippingRate, &settings.ShippingEnabled,
		&settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	return settings, nil
}

func (r *settingsRepository) UpdateSettings(ctx context.Context, settings *models.Settings) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE settings
		SET store_name = $1, store_email = $2, store_phone = $3, store_address = $4, store_logo = $5,
			tax_rate = $6, tax_enabled = $7, shipping_rate = $8, shipping_enabled = $9, updated_at = NOW()
		WHERE id = $10
	`

	result, err := r.db.ExecContext(dbCtx, query,
		settings.StoreName, settings.StoreEmail, settings.StorePhone, settings.StoreAddress, settings.StoreLogo,
		settings.TaxRate, settings.TaxEnabled, settings.ShippingRate, settings.ShippingEnabled, settings.ID)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
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
