package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/models"
	"github.com/edportal/portal-iam/permission"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserStore provides operations for portal users.
type UserStore struct {
	DB  *gorm.DB
	Gen Generation
}

func NewUserStore(db *gorm.DB, gen Generation) *UserStore { return &UserStore{DB: db, Gen: gen} }

// HashPassword returns the bcrypt hash of plain.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches hash.
func CheckPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// CreateUser inserts u. An empty role is derived from the legacy flags.
func (s *UserStore) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" {
		return errors.Validation("email", "is required")
	}
	if strings.TrimSpace(u.Role) == "" {
		u.Role = string(permission.RoleFromFlags(u.Flags()))
	} else {
		r, err := permission.ParseRole(u.Role)
		if err != nil {
			return err
		}
		u.Role = string(r)
	}
	if u.ID == "" {
		u.ID = models.NewID()
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("email %s: %w", u.Email, errors.ErrConflict)
		}
		return tx.Create(u).Error
	})
	return translate(err)
}

func (s *UserStore) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, notFound("user", id)
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, notFound("user", email)
		}
		return models.User{}, err
	}
	return u, nil
}

// SetPassword replaces the stored hash.
func (s *UserStore) SetPassword(ctx context.Context, id, plain string) error {
	if len(plain) < 8 {
		return errors.Validation("password", "must be at least 8 characters")
	}
	hash, err := HashPassword(plain)
	if err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("user", id)
	}
	return nil
}

// SetRole changes a user's canonical role. Role changes alter effective
// permissions, so the generation is bumped.
func (s *UserStore) SetRole(ctx context.Context, id string, role permission.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", errors.ErrUnknownRole, string(role))
	}
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"role": string(role), "updated_at": now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("user", id)
	}
	return invalidate(ctx, s.Gen)
}

// BackfillResult summarizes a BackfillRoles run.
type BackfillResult struct {
	Scanned int            `json:"scanned"`
	Updated int            `json:"updated"`
	ByRole  map[string]int `json:"by_role"`
}

// BackfillRoles writes RoleFromFlags into the role column. Users whose role
// is already a catalog role are kept unless overwrite is set.
func (s *UserStore) BackfillRoles(ctx context.Context, overwrite bool, batchSize int) (BackfillResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	out := BackfillResult{ByRole: map[string]int{}}
	var batch []models.User
	res := s.DB.WithContext(ctx).Model(&models.User{}).Order("id ASC").
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			for _, u := range batch {
				out.Scanned++
				if !overwrite {
					if _, err := permission.ParseRole(u.Role); err == nil {
						continue
					}
				}
				role := permission.RoleFromFlags(u.Flags())
				if u.Role == string(role) {
					continue
				}
				if err := tx.Session(&gorm.Session{NewDB: true}).Model(&models.User{}).Where("id = ?", u.ID).
					Updates(map[string]any{"role": string(role), "updated_at": now()}).Error; err != nil {
					return err
				}
				out.Updated++
				out.ByRole[string(role)]++
			}
			return nil
		})
	if res.Error != nil {
		return out, res.Error
	}
	if out.Updated > 0 {
		return out, invalidate(ctx, s.Gen)
	}
	return out, nil
}
