package content

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ticsummit/ticsite/common/dbutil"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
)

// Setting is the API view of a site setting.
type Setting struct {
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func settingView(s *models.SiteSetting) Setting {
	return Setting{Key: s.Key, Value: json.RawMessage(s.Value), Description: s.Description, UpdatedAt: s.UpdatedAt}
}

// SettingsStore manages keyed site settings.
type SettingsStore struct {
	db *gorm.DB
}

func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// All returns every setting as key -> value.
func (s *SettingsStore) All(ctx context.Context) (map[string]json.RawMessage, error) {
	var rows []models.SiteSetting
	if err := s.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&rows).Error; err != nil {
		return nil, dbutil.WrapError(err)
	}
	out := make(map[string]json.RawMessage, len(rows))
	for i := range rows {
		out[rows[i].Key] = json.RawMessage(rows[i].Value)
	}
	return out, nil
}

func (s *SettingsStore) Get(ctx context.Context, key string) (Setting, error) {
	row, err := dbutil.FindOne[models.SiteSetting](s.db.WithContext(ctx).Where(&models.SiteSetting{Key: key}))
	if errors.Is(err, errors.NotFound) {
		return Setting{}, errors.NotFound.Explain("setting %q not found", key)
	}
	if err != nil {
		return Setting{}, err
	}
	return settingView(row), nil
}

// Put creates or replaces the setting at key.
func (s *SettingsStore) Put(ctx context.Context, key string, value json.RawMessage, description string) (Setting, error) {
	if !ValidSettingKey(key) {
		return Setting{}, errors.Invalid.Explain("invalid setting key %q", key).WithField("key", "pattern", "letters, digits, dots, dashes and underscores")
	}
	if len(value) == 0 || !json.Valid(value) {
		return Setting{}, errors.Invalid.Explain("setting value must be valid JSON").WithField("value", "json", "must be valid JSON")
	}

	row := models.SiteSetting{Key: key, Value: string(value), Description: description}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return Setting{}, dbutil.WrapError(err)
	}
	return s.Get(ctx, key)
}

func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	res := s.db.WithContext(ctx).Where(&models.SiteSetting{Key: key}).Delete(&models.SiteSetting{})
	if res.Error != nil {
		return dbutil.WrapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound.Explain("setting %q not found", key)
	}
	return nil
}

// ValidSettingKey accepts 1-96 characters of [A-Za-z0-9._-].
func ValidSettingKey(key string) bool {
	if key == "" || len(key) > 96 {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
