package dto

// SettingItem represents a single setting item.
type SettingItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	IsSecret    bool   `json:"is_secret"`
}

// GetAllSettingsResponse represents all settings by category.
type GetAllSettingsResponse struct {
	Settings map[string][]SettingItem `json:"settings"`
}

// UpdateSettingsRequest is the body of PUT /admin/settings.
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings"`
}
