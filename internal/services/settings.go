package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/trendhub-shop/commerce-platform/internal/cache"
	"github.com/trendhub-shop/commerce-platform/internal/errors"
	"github.com/trendhub-shop/commerce-platform/internal/models"
	repository "github.com/trendhub-shop/commerce-platform/internal/repositories"
)

// SettingsProvider is what the checkout path needs from store settings: a
// read-only snapshot per request.
type SettingsProvider interface {
	Get(ctx context.Context) (*models.Settings, error)
}

type SettingsService interface {
	Get(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, req *models.UpdateSettingsRequest) (*models.Settings, error)
}

type settingsService struct {
	store repository.Store
	cache cache.Cache
	ttl   time.Duration
}

func NewSettingsService(store repository.Store, c cache.Cache, ttl time.Duration) SettingsService {
	return &settingsService{store: store, cache: c, ttl: ttl}
}

// Get serves the settings singleton, cache-aside. A cache failure falls
// through to the database rather than failing the request.
func (s *settingsService) Get(ctx context.Context) (*models.Settings, error) {

	settings := &models.Settings{}

	if s.cache != nil {
		hit, err := s.cache.Get(ctx, cache.SettingsKey, settings)
		if err != nil {
			slog.Warn("Settings cache read failed", slog.String("error", err.Error()))
		} else if hit {
			return settings, nil
		}
	}

	settings, err := s.store.Repos().Settings.GetSettings(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Store settings not configured").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to load settings").WithError(err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.SettingsKey, settings, s.ttl); err != nil {
			slog.Warn("Settings cache write failed", slog.String("error", err.Error()))
		}
	}

	return settings, nil
}

// Update patches the singleton and drops the cached copy.
func (s *settingsService) Update(ctx context.Context, req *models.UpdateSettingsRequest) (*models.Settings, error) {

	settings, err := s.store.Repos().Settings.GetSettings(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Store settings not configured").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to load settings").WithError(err)
	}

	applySettingsPatch(settings, req)

	if err := s.store.Repos().Settings.UpdateSettings(ctx, settings); err != nil {
		return nil, errors.DatabaseError("Failed to update settings").WithError(err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.SettingsKey); err != nil {
			slog.Warn("Settings cache invalidation failed", slog.String("error", err.Error()))
		}
	}

	return settings, nil
}

func applySettingsPatch(settings *models.Settings, req *models.UpdateSettingsRequest) {
	if req.StoreName != nil {
		settings.StoreName = *req.StoreName
	}

	if req.StoreEmail != nil {
		settings.StoreEmail = *req.StoreEmail
	}

	if req.StorePhone != nil {
		settings.StorePhone = *req.StorePhone
	}

	if req.StoreAddress != nil {
		settings.StoreAddress = *req.StoreAddress
	}

	if req.StoreLogo != nil {
		settings.StoreLogo = *req.StoreLogo
	}

	if req.TaxRate != nil {
		settings.TaxRate = *req.TaxRate
	}

	if req.TaxEnabled != nil {
		settings.TaxEnabled = *req.TaxEnabled
	}

	if req.ShippingRate != nil {
		settings.ShippingRate = *req.ShippingRate
	}

	if req.ShippingEnabled != nil {
		settings.ShippingEnabled = *req.ShippingEnabled
	}
}
