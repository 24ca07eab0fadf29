package auth

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/common/dbutil"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
)

// ListUsers returns accounts in sign-up order.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]models.User, int64, error) {
	p := dbutil.NewPagination(page, perPage)
	tx := s.db.WithContext(ctx).Model(&models.User{}).Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, dbutil.WrapError(err)
	}
	users := make([]models.User, 0, p.PerPage)
	if err := tx.Scopes(p.Scope).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, 0, dbutil.WrapError(err)
	}
	return users, total, nil
}

// SetRole changes the role of a user. Admins cannot demote themselves.
func (s *Service) SetRole(ctx context.Context, actor, id uuid.UUID, role string) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, errors.Invalid.Explain("unknown role %q", role).WithField("role", "oneof", "must be one of member editor admin")
	}
	if actor == id && role != models.RoleAdmin {
		return nil, errors.Forbidden.Explain("you cannot demote yourself")
	}
	user, err := s.user(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("role", role).Error; err != nil {
		return nil, dbutil.WrapError(err)
	}
	user.Role = role
	s.log.Info("user role changed", zap.String("user_id", id.String()), zap.String("role", role), zap.String("actor", actor.String()))
	return user, nil
}

// DeleteUser removes a user and their sessions. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor, id uuid.UUID) error {
	if actor == id {
		return errors.Forbidden.Explain("you cannot delete yourself")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.User{}, "id = ?", id)
		if res.Error != nil {
			return dbutil.WrapError(res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.NotFound.Explain("user %s not found", id)
		}
		return dbutil.WrapError(tx.Where("user_id = ?", id).Delete(&models.Session{}).Error)
	})
}
