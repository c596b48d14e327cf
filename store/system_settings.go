package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/edportal/portal-iam/errors"
	"gorm.io/gorm"
)

// Well-known setting keys.
const (
	SettingPortalName         = "portal.name"
	SettingTokenTTLMinutes    = "auth.token_ttl_minutes"
	SettingAllowLogin         = "auth.allow_login"
	SettingDefaultMemberRole  = "permissions.default_member_role"
	settingsMaskedPlaceholder = "********"
)

// SystemSetting represents a portal configuration setting.
type SystemSetting struct {
	Key         string    `gorm:"column:key;primaryKey" json:"key"`
	Value       string    `gorm:"column:value" json:"value"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	Category    string    `gorm:"column:category" json:"category"`
	IsSecret    bool      `gorm:"column:is_secret" json:"is_secret"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

// Masked hides the value of secret settings.
func (s SystemSetting) Masked() SystemSetting {
	if s.IsSecret && s.Value != "" {
		s.Value = settingsMaskedPlaceholder
	}
	return s
}

// SystemSettingsStore manages system settings in the database.
type SystemSettingsStore struct {
	DB *gorm.DB
}

func NewSystemSettingsStore(db *gorm.DB) *SystemSettingsStore {
	return &SystemSettingsStore{DB: db}
}

// Get retrieves a single setting by key.
func (s *SystemSettingsStore) Get(ctx context.Context, key string) (*SystemSetting, error) {
	var setting SystemSetting
	if err := s.DB.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("setting", key)
		}
		return nil, err
	}
	return &setting, nil
}

func (s *SystemSettingsStore) GetValue(ctx context.Context, key string) (string, error) {
	setting, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// GetValueOrDefault returns defaultValue when the key is missing or empty.
func (s *SystemSettingsStore) GetValueOrDefault(ctx context.Context, key, defaultValue string) string {
	value, err := s.GetValue(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}
	return value
}

func (s *SystemSettingsStore) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	value, err := s.GetValue(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return b
}

func (s *SystemSettingsStore) GetInt(ctx context.Context, key string, defaultValue int) int {
	value, err := s.GetValue(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return intVal
}

// Set creates or updates a setting value.
func (s *SystemSettingsStore) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.Validation("key", "is required")
	}
	return s.DB.WithContext(ctx).Exec(`
		INSERT INTO system_settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value).Error
}

// ListAll retrieves all settings ordered by category and key.
func (s *SystemSettingsStore) ListAll(ctx context.Context) ([]SystemSetting, error) {
	var settings []SystemSetting
	if err := s.DB.WithContext(ctx).Order("category, key").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *SystemSettingsStore) ListByCategory(ctx context.Context, category string) ([]SystemSetting, error) {
	var settings []SystemSetting
	if err := s.DB.WithContext(ctx).Where("category = ?", category).Order("key").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

// GetMultiple retrieves the values of keys; missing keys are absent from the map.
func (s *SystemSettingsStore) GetMultiple(ctx context.Context, keys []string) (map[string]string, error) {
	var settings []SystemSetting
	if err := s.DB.WithContext(ctx).Where("key IN ?", keys).Find(&settings).Error; err != nil {
		return nil, err
	}
	result := make(map[string]string, len(settings))
	for _, setting := range settings {
		result[setting.Key] = setting.Value
	}
	return result, nil
}

// SetMultiple writes all values in one transaction.
func (s *SystemSettingsStore) SetMultiple(ctx context.Context, settings map[string]string) error {
	for key := range settings {
		if strings.TrimSpace(key) == "" {
			return errors.Validation("key", "is required")
		}
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range settings {
			if err := tx.Exec(`
				INSERT INTO system_settings (key, value, updated_at)
				VALUES (?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
			`, key, value).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// TokenTTL is the configured access token lifetime, or fallback.
func (s *SystemSettingsStore) TokenTTL(ctx context.Context, fallback time.Duration) time.Duration {
	minutes := s.GetInt(ctx, SettingTokenTTLMinutes, 0)
	if minutes <= 0 {
		return fallback
	}
	return time.Duration(minutes) * time.Minute
}
