package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"schoolpay_echo/internal/models"
)

const gatewaySettingsCacheKey = "gateway_settings"

// SettingsService loads the single gateway-settings row. Reads go through the
// cache when one is configured; writes invalidate it. The settings are never
// held in a process global.
type SettingsService struct {
	db    *gorm.DB
	cache *RedisCache
}

func NewSettingsService(db *gorm.DB, cache *RedisCache) *SettingsService {
	return &SettingsService{db: db, cache: cache}
}

// Get fetches the settings row, creating the default one on first use
func (s *SettingsService) Get(ctx context.Context) (*models.GatewaySettings, error) {
	if s.cache == nil {
		return s.load(ctx)
	}

	settings, err := GetOrSet(s.cache, ctx, gatewaySettingsCacheKey, 10*time.Minute, func() (models.GatewaySettings, error) {
		loaded, err := s.load(ctx)
		if err != nil {
			return models.GatewaySettings{}, err
		}
		return *loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save persists the settings row and invalidates the cache
func (s *SettingsService) Save(ctx context.Context, settings *models.GatewaySettings) error {
	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, gatewaySettingsCacheKey)
	}
	return nil
}

func (s *SettingsService) load(ctx context.Context) (*models.GatewaySettings, error) {
	var settings models.GatewaySettings
	err := s.db.WithContext(ctx).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	settings = models.GatewaySettings{
		PlatformPercent: DefaultPlatformPercent,
	}
	if err := s.db.WithContext(ctx).Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}
