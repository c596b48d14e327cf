package server

import (
	"net/http"
	"time"

	"github.com/edportal/portal-iam/permission"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const loggerKey = "logger"

// NewGinEngine builds a Gin router and registers every route.
func NewGinEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(s.requestLogging())

	r.GET("/healthz", s.HandleHealthzGin)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	api.POST("/auth/login", s.HandleLoginGin)

	authed := api.Group("")
	authed.Use(s.TokenMiddleware())

	// Own and per-user permission views
	authed.GET("/me/permissions", s.HandleMyPermissionsGin)
	authed.GET("/users/:userId/permissions", s.HandleUserPermissionsGin)
	authed.GET("/users/:userId/permissions/:key/explain", s.RequirePermission(permission.CanManagePermissions), s.HandleExplainGin)
	authed.GET("/users/:userId/groups", s.HandleUserGroupsGin)

	// Point queries in a context
	authed.GET("/institutions/:institutionId/permissions/check/:key", s.HandleCheckGin)
	authed.GET("/schools/:schoolId/permissions/check/:key", s.HandleCheckGin)

	// Directory
	authed.GET("/institutions/:institutionId/schools", s.RequireAnyPermission(permission.CanManageSchools, permission.CanManageGroups), s.HandleListSchoolsGin)

	// Groups and membership
	authed.GET("/groups", s.RequirePermission(permission.CanManageGroups), s.HandleListGroupsGin)
	authed.POST("/groups", s.RequirePermission(permission.CanManageGroups), s.HandleCreateGroupGin)
	authed.GET("/groups/:groupId", s.RequirePermission(permission.CanManageGroups), s.HandleGetGroupGin)
	authed.POST("/groups/:groupId/deactivate", s.RequirePermission(permission.CanManageGroups), s.HandleDeactivateGroupGin)
	authed.GET("/groups/:groupId/members", s.RequirePermission(permission.CanManageGroups), s.HandleListMembersGin)
	authed.POST("/groups/:groupId/members", s.RequirePermission(permission.CanManageGroups), s.HandleAddMemberGin)
	authed.DELETE("/groups/:groupId/members/:userId", s.RequirePermission(permission.CanManageGroups), s.HandleRemoveMemberGin)

	// Group rules
	authed.GET("/groups/:groupId/permissions", s.RequirePermission(permission.CanManagePermissions), s.HandleListGroupPermissionsGin)
	authed.PUT("/groups/:groupId/permissions", s.RequirePermission(permission.CanManagePermissions), s.HandleSetGroupPermissionGin)
	authed.DELETE("/groups/:groupId/permissions/:key", s.RequirePermission(permission.CanManagePermissions), s.HandleRemoveGroupPermissionGin)

	// Direct overrides
	authed.GET("/users/:userId/overrides", s.RequirePermission(permission.CanManagePermissions), s.HandleListOverridesGin)
	authed.PUT("/users/:userId/overrides", s.RequirePermission(permission.CanManagePermissions), s.HandleSetOverrideGin)
	authed.DELETE("/users/:userId/overrides/:key", s.RequirePermission(permission.CanManagePermissions), s.HandleRemoveOverrideGin)

	// Settings
	authed.GET("/admin/settings", s.RequirePermission(permission.CanManageSettings), s.HandleGetAllSettingsGin)
	authed.PUT("/admin/settings", s.RequirePermission(permission.CanManageSettings), s.HandleUpdateSettingsGin)

	return r
}

// requestLogging attaches a request-scoped logger and logs each request once.
func (s *Server) requestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		entry := s.Logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		})
		c.Set(loggerKey, entry)
		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if uid := GetUserIDFromContext(c); uid != "" {
			fields["user_id"] = uid
		}
		entry = entry.WithFields(fields)
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request completed")
		} else {
			entry.Debug("request completed")
		}
	}
}

func (s *Server) requestLogger(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(logrus.FieldLogger); ok {
			return l
		}
	}
	return s.Logger
}

// HandleHealthzGin reports liveness and database reachability.
// GET /healthz
func (s *Server) HandleHealthzGin(c *gin.Context) {
	if err := s.Ping(); err != nil {
		s.requestLogger(c).WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
