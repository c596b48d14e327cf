package dto

import "github.com/edportal/portal-iam/models"

// SchoolListResponse wraps the schools of one institution.
type SchoolListResponse struct {
	InstitutionID string          `json:"institution_id"`
	Schools       []models.School `json:"schools"`
	Total         int             `json:"total"`
}
