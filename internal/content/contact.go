package content

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/common/dbutil"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
)

// ContactStore keeps contact form submissions.
type ContactStore struct {
	db    *gorm.DB
	clean *Sanitizer
}

func NewContactStore(db *gorm.DB, clean *Sanitizer) *ContactStore {
	return &ContactStore{db: db, clean: clean}
}

func (s *ContactStore) Submit(ctx context.Context, msg *models.ContactMessage, ip string) error {
	msg.Base = models.Base{}
	msg.Read = false
	msg.IPAddress = ip
	msg.Prepare(s.clean)
	if msg.Message == "" {
		return errors.Invalid.Explain("message is empty after sanitizing").WithField("message", "required", "is required")
	}
	return dbutil.WrapError(s.db.WithContext(ctx).Create(msg).Error)
}

// List returns submissions newest first.
func (s *ContactStore) List(ctx context.Context, page, perPage int, unreadOnly bool) ([]models.ContactMessage, int64, error) {
	p := dbutil.NewPagination(page, perPage)
	tx := s.db.WithContext(ctx).Model(&models.ContactMessage{})
	if unreadOnly {
		tx = tx.Where(map[string]interface{}{"read": false})
	}
	tx = tx.Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, dbutil.WrapError(err)
	}
	items := make([]models.ContactMessage, 0, p.PerPage)
	if err := tx.Scopes(p.Scope).Order("created_at desc").Find(&items).Error; err != nil {
		return nil, 0, dbutil.WrapError(err)
	}
	return items, total, nil
}

func (s *ContactStore) MarkRead(ctx context.Context, id uuid.UUID, read bool) (*models.ContactMessage, error) {
	msg, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(msg).Update("read", read).Error; err != nil {
		return nil, dbutil.WrapError(err)
	}
	msg.Read = read
	return msg, nil
}

func (s *ContactStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.ContactMessage{}, "id = ?", id)
	if res.Error != nil {
		return dbutil.WrapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound.Explain("message %s not found", id)
	}
	return nil
}

func (s *ContactStore) get(ctx context.Context, id uuid.UUID) (*models.ContactMessage, error) {
	msg, err := dbutil.FindOne[models.ContactMessage](s.db.WithContext(ctx).Where("id = ?", id))
	if errors.Is(err, errors.NotFound) {
		return nil, errors.NotFound.Explain("message %s not found", id)
	}
	return msg, err
}
