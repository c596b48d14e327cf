package server

import (
	"github.com/edportal/portal-iam/errors"
	"github.com/gin-gonic/gin"
)

// renderError writes err as {"error","error_description"} and aborts. Internal
// errors are logged with the request and rendered without detail.
func (s *Server) renderError(c *gin.Context, err error) {
	status := errors.StatusCode(err)
	if status >= 500 {
		s.requestLogger(c).WithError(err).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":             errors.Code(err),
		"error_description": errors.Description(err),
	})
}

// badRequest is renderError for malformed bodies.
func (s *Server) badRequest(c *gin.Context, description string) {
	c.AbortWithStatusJSON(errors.StatusCode(errors.ErrValidation), gin.H{
		"error":             errors.Code(errors.ErrValidation),
		"error_description": description,
	})
}
