package server

import (
	"net/http"

	"github.com/edportal/portal-iam/dto"
	"github.com/edportal/portal-iam/permission"
	"github.com/gin-gonic/gin"
)

// HandleListSchoolsGin lists the schools of an institution, so group owners
// can be picked. The key check happens in the route middleware.
// GET /api/v1/institutions/:institutionId/schools
func (s *Server) HandleListSchoolsGin(c *gin.Context) {
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	institutionID := c.Param("institutionId")
	ctx := c.Request.Context()
	if err := s.authorizeAt(ctx, a, permission.InstitutionContext(institutionID)); err != nil {
		s.renderError(c, err)
		return
	}
	schools, err := s.Schools.ListSchools(ctx, institutionID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SchoolListResponse{InstitutionID: institutionID, Schools: schools, Total: len(schools)})
}
