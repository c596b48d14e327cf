package server

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/edportal/portal-iam/dto"
	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/store"
	"github.com/gin-gonic/gin"
)

// HandleGetAllSettingsGin retrieves all settings grouped by category, or the
// settings of one category.
// GET /api/v1/admin/settings?category=
func (s *Server) HandleGetAllSettingsGin(c *gin.Context) {
	var (
		settings []store.SystemSetting
		err      error
	)
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		settings, err = s.Settings.ListByCategory(c.Request.Context(), category)
	} else {
		settings, err = s.Settings.ListAll(c.Request.Context())
	}
	if err != nil {
		s.renderError(c, err)
		return
	}

	// Group by category
	grouped := make(map[string][]dto.SettingItem)
	for _, setting := range settings {
		m := setting.Masked()
		grouped[m.Category] = append(grouped[m.Category], dto.SettingItem{
			Key:         m.Key,
			Value:       m.Value,
			Description: m.Description,
			IsSecret:    m.IsSecret,
		})
	}
	c.JSON(http.StatusOK, dto.GetAllSettingsResponse{Settings: grouped})
}

// HandleUpdateSettingsGin writes several settings at once. Only keys that
// already exist may be written.
// PUT /api/v1/admin/settings
func (s *Server) HandleUpdateSettingsGin(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON payload")
		return
	}
	if len(req.Settings) == 0 {
		s.renderError(c, errors.Validation("settings", "at least one setting is required"))
		return
	}
	ctx := c.Request.Context()
	keys := make([]string, 0, len(req.Settings))
	for k := range req.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	known, err := s.Settings.GetMultiple(ctx, keys)
	if err != nil {
		s.renderError(c, err)
		return
	}
	for _, k := range keys {
		if _, ok := known[k]; !ok {
			s.renderError(c, errors.Validation("settings", "unknown setting "+strconv.Quote(k)))
			return
		}
	}
	if err := s.Settings.SetMultiple(ctx, req.Settings); err != nil {
		s.renderError(c, err)
		return
	}
	s.requestLogger(c).WithField("count", len(req.Settings)).Info("settings updated")
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": len(req.Settings)})
}
