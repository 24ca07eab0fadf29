// Package models holds the persisted entities of the site.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by every table with a UUID key.
type Base struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a random ID when none was set.
func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *Base) GetBase() *Base { return b }

// Counters are the denormalized engagement totals. They are rebuilt from the
// views and likes tables by engagement.Reconcile.
type Counters struct {
	ViewCount int64 `json:"view_count" gorm:"not null;default:0"`
	LikeCount int64 `json:"like_count" gorm:"not null;default:0"`
}

func (c *Counters) GetCounters() *Counters { return c }

// Publication controls public visibility.
type Publication struct {
	Published   bool       `json:"published" gorm:"index"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

func (p *Publication) IsPublished() bool { return p.Published }

func (p *Publication) GetPublication() *Publication { return p }

// MarkPublished stamps PublishedAt on the first transition to published.
func (p *Publication) MarkPublished(now time.Time) {
	if p.Published && p.PublishedAt == nil {
		p.PublishedAt = &now
	}
}

// TextCleaner sanitizes user supplied text before it is stored.
type TextCleaner interface {
	// Plain strips all markup.
	Plain(s string) string
	// Rich keeps a safe subset of HTML.
	Rich(s string) string
	// Markdown renders markdown to safe HTML.
	Markdown(s string) (string, error)
}

func cleanAll(clean func(string) string, in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = clean(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
