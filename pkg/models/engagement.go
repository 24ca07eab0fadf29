package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// View is one counted page view. Repeats from the same IP inside the view
// window are not stored.
type View struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TargetType string    `json:"target_type" gorm:"size:16;not null;index:idx_views_target,priority:1"`
	TargetID   uuid.UUID `json:"target_id" gorm:"type:uuid;not null;index:idx_views_target,priority:2"`
	IPAddress  string    `json:"ip_address" gorm:"size:64;not null;index:idx_views_target,priority:3"`
	UserAgent  string    `json:"user_agent" gorm:"size:255"`
	CreatedAt  time.Time `json:"created_at" gorm:"index:idx_views_target,priority:4"`
}

func (v *View) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Like is unique per target and IP.
type Like struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TargetType string    `json:"target_type" gorm:"size:16;not null;uniqueIndex:idx_likes_target_ip,priority:1"`
	TargetID   uuid.UUID `json:"target_id" gorm:"type:uuid;not null;uniqueIndex:idx_likes_target_ip,priority:2"`
	IPAddress  string    `json:"ip_address" gorm:"size:64;not null;uniqueIndex:idx_likes_target_ip,priority:3"`
	CreatedAt  time.Time `json:"created_at"`
}

func (l *Like) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// All lists every model for migrations.
func All() []interface{} {
	return []interface{}{
		&User{}, &Session{},
		&BlogPost{}, &Project{},
		&MentorProfile{}, &AlumniProfile{}, &AmbassadorProfile{}, &TeamMember{},
		&FAQ{}, &SiteSetting{}, &ContactMessage{},
		&View{}, &Like{},
	}
}
