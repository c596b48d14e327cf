package store

import (
	"context"
	"time"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/models"
	"github.com/edportal/portal-iam/permission"
	"gorm.io/gorm"
)

// RuleStore is the read side the resolver loads from. Each method is a
// single query.
type RuleStore struct {
	DB      *gorm.DB
	Schools *SchoolStore
}

func NewRuleStore(db *gorm.DB) *RuleStore {
	return &RuleStore{DB: db, Schools: NewSchoolStore(db)}
}

// UserRole returns the canonical role of an active user.
func (s *RuleStore) UserRole(ctx context.Context, userID string) (permission.Role, error) {
	var u models.User
	err := s.DB.WithContext(ctx).
		Select("id", "role", "is_active", "is_admin", "is_manager", "is_institution_manager",
			"is_coordinator", "is_teacher", "is_guardian", "is_student").
		Where("id = ?", userID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", notFound("user", userID)
		}
		return "", err
	}
	if !u.IsActive {
		return "", notFound("user", userID)
	}
	return u.CanonicalRole(), nil
}

type groupRuleRow struct {
	GroupID       string    `gorm:"column:group_id"`
	GroupName     string    `gorm:"column:group_name"`
	PermissionKey string    `gorm:"column:permission_key"`
	Allowed       bool      `gorm:"column:allowed"`
	ContextType   string    `gorm:"column:context_type"`
	ContextID     string    `gorm:"column:context_id"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

// GroupRulesForUser loads every rule of every active group userID belongs to
// in one join.
func (s *RuleStore) GroupRulesForUser(ctx context.Context, userID string) ([]permission.Rule, error) {
	var rows []groupRuleRow
	err := s.DB.WithContext(ctx).Raw(`
		SELECT gp.group_id, g.name AS group_name, gp.permission_key, gp.allowed,
		       gp.context_type, gp.context_id, gp.updated_at
		FROM group_permissions gp
		JOIN user_groups g ON g.id = gp.group_id
		JOIN group_members gm ON gm.group_id = gp.group_id
		WHERE gm.user_id = ? AND g.is_active = ?
	`, userID, true).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	rules := make([]permission.Rule, 0, len(rows))
	for _, r := range rows {
		p := models.GroupPermission{
			GroupID:       r.GroupID,
			PermissionKey: r.PermissionKey,
			Allowed:       r.Allowed,
			ContextType:   r.ContextType,
			ContextID:     r.ContextID,
			UpdatedAt:     r.UpdatedAt,
		}
		rules = append(rules, p.Rule(r.GroupName))
	}
	return rules, nil
}

func (s *RuleStore) DirectRulesForUser(ctx context.Context, userID string) ([]permission.Rule, error) {
	var rows []models.UserPermission
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	rules := make([]permission.Rule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, r.Rule())
	}
	return rules, nil
}

func (s *RuleStore) SchoolInstitution(ctx context.Context, schoolID string) (string, error) {
	return s.Schools.SchoolInstitution(ctx, schoolID)
}
