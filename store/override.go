package store

import (
	"context"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/models"
	"github.com/edportal/portal-iam/permission"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OverrideStore persists direct per-user permission overrides.
type OverrideStore struct {
	DB  *gorm.DB
	Gen Generation
}

func NewOverrideStore(db *gorm.DB, gen Generation) *OverrideStore {
	return &OverrideStore{DB: db, Gen: gen}
}

// SetDirectPermission upserts the override keyed by (user, key, context).
func (s *OverrideStore) SetDirectPermission(ctx context.Context, userID string, key permission.Key, allowed bool, c permission.Context, grantedBy string) (models.ContextualPermission, error) {
	if !key.Valid() {
		return models.ContextualPermission{}, errors.Validation("permission_key", "is not a known permission")
	}
	if err := c.Validate(); err != nil {
		return models.ContextualPermission{}, err
	}
	ctxType, ctxID := contextColumns(c)

	var row models.UserPermission
	changed := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.User{}, userID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("user", userID)
		}
		err = tx.Where("user_id = ? AND permission_key = ? AND context_type = ? AND context_id = ?",
			userID, string(key), ctxType, ctxID).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			ts := now()
			row = models.UserPermission{
				ID:            models.NewID(),
				UserID:        userID,
				PermissionKey: string(key),
				Allowed:       allowed,
				ContextType:   ctxType,
				ContextID:     ctxID,
				GrantedBy:     grantedBy,
				CreatedAt:     ts,
				UpdatedAt:     ts,
			}
			changed = true
			// a concurrent writer may insert the same override first
			if err := tx.Clauses(clause.OnConflict{
				Columns:   ruleConflictColumns("user_id"),
				DoUpdates: clause.Assignments(map[string]any{"allowed": allowed, "granted_by": grantedBy, "updated_at": ts}),
			}).Create(&row).Error; err != nil {
				return err
			}
			return tx.Where("user_id = ? AND permission_key = ? AND context_type = ? AND context_id = ?",
				userID, string(key), ctxType, ctxID).First(&row).Error
		case err != nil:
			return err
		case row.Allowed != allowed:
			row.Allowed = allowed
			row.GrantedBy = grantedBy
			row.UpdatedAt = now()
			changed = true
			return tx.Model(&models.UserPermission{}).Where("id = ?", row.ID).
				Updates(map[string]any{"allowed": allowed, "granted_by": grantedBy, "updated_at": row.UpdatedAt}).Error
		}
		return nil
	})
	if err != nil {
		return models.ContextualPermission{}, translate(err)
	}
	if changed {
		if err := invalidate(ctx, s.Gen); err != nil {
			return row.Contextual(), err
		}
	}
	return row.Contextual(), nil
}

func (s *OverrideStore) RemoveDirectPermission(ctx context.Context, userID string, key permission.Key, c permission.Context) error {
	if err := c.Validate(); err != nil {
		return err
	}
	ctxType, ctxID := contextColumns(c)
	res := s.DB.WithContext(ctx).
		Where("user_id = ? AND permission_key = ? AND context_type = ? AND context_id = ?", userID, string(key), ctxType, ctxID).
		Delete(&models.UserPermission{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("override", userID+"/"+string(key)+"@"+c.String())
	}
	return invalidate(ctx, s.Gen)
}

func (s *OverrideStore) ListDirectPermissions(ctx context.Context, userID string) ([]models.UserPermission, error) {
	var rows []models.UserPermission
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.User{}, userID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("user", userID)
		}
		return tx.Where("user_id = ?", userID).
			Order("permission_key ASC, context_type ASC, context_id ASC").Find(&rows).Error
	})
	return rows, err
}
