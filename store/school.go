package store

import (
	"context"
	"strings"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/models"
	"gorm.io/gorm"
)

// SchoolStore manages institutions and their schools.
type SchoolStore struct{ DB *gorm.DB }

func NewSchoolStore(db *gorm.DB) *SchoolStore { return &SchoolStore{DB: db} }

func (s *SchoolStore) CreateInstitution(ctx context.Context, name string) (models.Institution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Institution{}, errors.Validation("name", "is required")
	}
	inst := models.Institution{ID: models.NewID(), Name: name}
	if err := s.DB.WithContext(ctx).Create(&inst).Error; err != nil {
		return models.Institution{}, translate(err)
	}
	return inst, nil
}

func (s *SchoolStore) CreateSchool(ctx context.Context, institutionID, name string) (models.School, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.School{}, errors.Validation("name", "is required")
	}
	school := models.School{ID: models.NewID(), InstitutionID: institutionID, Name: name}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.Institution{}, institutionID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("institution", institutionID)
		}
		return tx.Create(&school).Error
	})
	if err != nil {
		return models.School{}, translate(err)
	}
	return school, nil
}

func (s *SchoolStore) GetSchool(ctx context.Context, id string) (models.School, error) {
	var school models.School
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&school).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.School{}, notFound("school", id)
		}
		return models.School{}, err
	}
	return school, nil
}

func (s *SchoolStore) ListSchools(ctx context.Context, institutionID string) ([]models.School, error) {
	var schools []models.School
	return schools, s.DB.WithContext(ctx).Where("institution_id = ?", institutionID).Order("name ASC").Find(&schools).Error
}

// SchoolInstitution returns the institution a school belongs to.
func (s *SchoolStore) SchoolInstitution(ctx context.Context, schoolID string) (string, error) {
	school, err := s.GetSchool(ctx, schoolID)
	if err != nil {
		return "", err
	}
	return school.InstitutionID, nil
}
