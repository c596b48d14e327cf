package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/models"
	"github.com/edportal/portal-iam/permission"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroupStore persists groups, memberships and group permission rules.
type GroupStore struct {
	DB  *gorm.DB
	Gen Generation
}

func NewGroupStore(db *gorm.DB, gen Generation) *GroupStore {
	return &GroupStore{DB: db, Gen: gen}
}

// CreateGroupInput carries the fields of a new group.
type CreateGroupInput struct {
	Name          string
	Description   string
	InstitutionID string
	SchoolID      string
	CreatedBy     string
}

// GroupFilter narrows ListGroups.
type GroupFilter struct {
	InstitutionID   string
	SchoolID        string
	IncludeInactive bool
}

func (s *GroupStore) CreateGroup(ctx context.Context, in CreateGroupInput) (models.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Group{}, errors.Validation("name", "is required")
	}
	g := models.Group{
		ID:          models.NewID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
		CreatedBy:   in.CreatedBy,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instID := strings.TrimSpace(in.InstitutionID)
		if schoolID := strings.TrimSpace(in.SchoolID); schoolID != "" {
			var school models.School
			if err := tx.Where("id = ?", schoolID).First(&school).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFound("school", schoolID)
				}
				return err
			}
			if instID != "" && instID != school.InstitutionID {
				return errors.Validation("school_id", "does not belong to institution "+instID)
			}
			instID = school.InstitutionID
			g.SchoolID = &school.ID
		}
		if instID != "" {
			ok, err := exists(tx, &models.Institution{}, instID)
			if err != nil {
				return err
			}
			if !ok {
				return notFound("institution", instID)
			}
			g.InstitutionID = &instID
		}
		return tx.Create(&g).Error
	})
	if err != nil {
		return models.Group{}, translate(err)
	}
	return g, nil
}

func (s *GroupStore) GetGroup(ctx context.Context, id string) (models.Group, error) {
	var g models.Group
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Group{}, notFound("group", id)
		}
		return models.Group{}, err
	}
	return g, nil
}

// ListGroups returns groups ordered by name.
func (s *GroupStore) ListGroups(ctx context.Context, f GroupFilter) ([]models.Group, error) {
	q := s.DB.WithContext(ctx).Model(&models.Group{})
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if f.InstitutionID != "" {
		q = q.Where("institution_id = ?", f.InstitutionID)
	}
	if f.SchoolID != "" {
		q = q.Where("school_id = ?", f.SchoolID)
	}
	var groups []models.Group
	return groups, q.Order("name ASC, id ASC").Find(&groups).Error
}

// DeactivateGroup soft-deletes a group. Its rules stop applying at once.
func (s *GroupStore) DeactivateGroup(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("group", id)
	}
	return invalidate(ctx, s.Gen)
}

// AddMember adds userID to groupID. A second add of the same pair fails with
// ErrConflict.
func (s *GroupStore) AddMember(ctx context.Context, groupID, userID, memberRole, addedBy string) (models.GroupMember, error) {
	memberRole = strings.ToLower(strings.TrimSpace(memberRole))
	if memberRole == "" {
		memberRole = models.GroupMemberRoleMember
	}
	if memberRole != models.GroupMemberRoleMember && memberRole != models.GroupMemberRoleAdmin {
		return models.GroupMember{}, errors.Validation("member_role", "must be member or admin")
	}
	m := models.GroupMember{
		ID:         models.NewID(),
		GroupID:    groupID,
		UserID:     userID,
		MemberRole: memberRole,
		AddedAt:    now(),
		AddedBy:    addedBy,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g models.Group
		if err := tx.Where("id = ?", groupID).First(&g).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("group", groupID)
			}
			return err
		}
		if !g.IsActive {
			return errors.Validation("group_id", "group is inactive")
		}
		ok, err := exists(tx, &models.User{}, userID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("user", userID)
		}
		var n int64
		if err := tx.Model(&models.GroupMember{}).Where("group_id = ? AND user_id = ?", groupID, userID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("user %s is already a member of group %s: %w", userID, groupID, errors.ErrConflict)
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return tx.Model(&models.Group{}).Where("id = ?", groupID).
			Updates(map[string]any{"member_count": gorm.Expr("member_count + 1"), "updated_at": now()}).Error
	})
	if err != nil {
		return models.GroupMember{}, translate(err)
	}
	return m, invalidate(ctx, s.Gen)
}

func (s *GroupStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.GroupMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("membership", groupID+"/"+userID)
		}
		return tx.Model(&models.Group{}).Where("id = ? AND member_count > 0", groupID).
			Updates(map[string]any{"member_count": gorm.Expr("member_count - 1"), "updated_at": now()}).Error
	})
	if err != nil {
		return translate(err)
	}
	return invalidate(ctx, s.Gen)
}

func (s *GroupStore) ListMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.Group{}, groupID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("group", groupID)
		}
		return tx.Where("group_id = ?", groupID).Order("added_at ASC, id ASC").Find(&members).Error
	})
	return members, err
}

// SetGroupPermission upserts the rule keyed by (group, key, context). Writing
// the value a rule already holds leaves the row untouched.
func (s *GroupStore) SetGroupPermission(ctx context.Context, groupID string, key permission.Key, allowed bool, c permission.Context, updatedBy string) (models.GroupPermission, error) {
	if !key.Valid() {
		return models.GroupPermission{}, errors.Validation("permission_key", "is not a known permission")
	}
	if err := c.Validate(); err != nil {
		return models.GroupPermission{}, err
	}
	ctxType, ctxID := contextColumns(c)

	var row models.GroupPermission
	changed := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.Group{}, groupID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("group", groupID)
		}
		err = tx.Where("group_id = ? AND permission_key = ? AND context_type = ? AND context_id = ?",
			groupID, string(key), ctxType, ctxID).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			ts := now()
			row = models.GroupPermission{
				ID:            models.NewID(),
				GroupID:       groupID,
				PermissionKey: string(key),
				Allowed:       allowed,
				ContextType:   ctxType,
				ContextID:     ctxID,
				UpdatedBy:     updatedBy,
				CreatedAt:     ts,
				UpdatedAt:     ts,
			}
			changed = true
			// a concurrent writer may insert the same rule first
			if err := tx.Clauses(clause.OnConflict{
				Columns:   ruleConflictColumns("group_id"),
				DoUpdates: clause.Assignments(map[string]any{"allowed": allowed, "updated_by": updatedBy, "updated_at": ts}),
			}).Create(&row).Error; err != nil {
				return err
			}
			return tx.Where("group_id = ? AND permission_key = ? AND context_type = ? AND context_id = ?",
				groupID, string(key), ctxType, ctxID).First(&row).Error
		case err != nil:
			return err
		case row.Allowed != allowed:
			row.Allowed = allowed
			row.UpdatedBy = updatedBy
			row.UpdatedAt = now()
			changed = true
			return tx.Model(&models.GroupPermission{}).Where("id = ?", row.ID).
				Updates(map[string]any{"allowed": allowed, "updated_by": updatedBy, "updated_at": row.UpdatedAt}).Error
		}
		return nil
	})
	if err != nil {
		return models.GroupPermission{}, translate(err)
	}
	if changed {
		if err := invalidate(ctx, s.Gen); err != nil {
			return row, err
		}
	}
	return row, nil
}

func (s *GroupStore) RemoveGroupPermission(ctx context.Context, groupID string, key permission.Key, c permission.Context) error {
	if err := c.Validate(); err != nil {
		return err
	}
	ctxType, ctxID := contextColumns(c)
	res := s.DB.WithContext(ctx).
		Where("group_id = ? AND permission_key = ? AND context_type = ? AND context_id = ?", groupID, string(key), ctxType, ctxID).
		Delete(&models.GroupPermission{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("group permission", groupID+"/"+string(key)+"@"+c.String())
	}
	return invalidate(ctx, s.Gen)
}

func (s *GroupStore) ListGroupPermissions(ctx context.Context, groupID string) ([]models.GroupPermission, error) {
	var rows []models.GroupPermission
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.Group{}, groupID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("group", groupID)
		}
		return tx.Where("group_id = ?", groupID).
			Order("permission_key ASC, context_type ASC, context_id ASC").Find(&rows).Error
	})
	return rows, err
}

// ListGroupsForUser returns the active groups userID belongs to, by name.
func (s *GroupStore) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	var groups []models.Group
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.User{}, userID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("user", userID)
		}
		return tx.Model(&models.Group{}).
			Select("user_groups.*").
			Joins("JOIN group_members gm ON gm.group_id = user_groups.id").
			Where("gm.user_id = ? AND user_groups.is_active = ?", userID, true).
			Order("user_groups.name ASC, user_groups.id ASC").
			Find(&groups).Error
	})
	return groups, err
}
