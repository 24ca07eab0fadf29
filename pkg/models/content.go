package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Slugged is embedded by content addressable by slug.
type Slugged struct {
	Slug string `json:"slug" gorm:"uniqueIndex;size:96;not null" binding:"omitempty,max=96,slug"`
}

func (s *Slugged) GetSlug() string     { return s.Slug }
func (s *Slugged) SetSlug(slug string) { s.Slug = slug }

// BlogPost is a markdown article. ContentHTML is derived from Content on
// every write and is never accepted from clients.
type BlogPost struct {
	Base
	Slugged
	Publication
	Counters
	Title       string     `json:"title" gorm:"size:200;not null" binding:"required,max=200"`
	Excerpt     string     `json:"excerpt" binding:"max=500"`
	Content     string     `json:"content" gorm:"type:text"`
	ContentHTML string     `json:"content_html" gorm:"type:text"`
	CoverImage  string     `json:"cover_image"`
	AuthorID    *uuid.UUID `json:"author_id,omitempty" gorm:"type:uuid;index"`
	AuthorName  string     `json:"author_name" gorm:"size:120"`
	Tags        []string   `json:"tags" gorm:"type:text;serializer:json"`
}

func (*BlogPost) Resource() string     { return "post" }
func (p *BlogPost) SlugSource() string { return p.Title }

func (p *BlogPost) Prepare(c TextCleaner) error {
	p.Title = c.Plain(p.Title)
	p.Excerpt = c.Plain(p.Excerpt)
	p.AuthorName = c.Plain(p.AuthorName)
	p.Tags = cleanAll(func(s string) string { return strings.ToLower(c.Plain(s)) }, p.Tags)
	html, err := c.Markdown(p.Content)
	if err != nil {
		return err
	}
	p.ContentHTML = html
	p.MarkPublished(time.Now().UTC())
	return nil
}

// Project is a showcased summit project.
type Project struct {
	Base
	Slugged
	Publication
	Counters
	Title       string   `json:"title" gorm:"size:200;not null" binding:"required,max=200"`
	Summary     string   `json:"summary" binding:"max=500"`
	Description string   `json:"description" gorm:"type:text"`
	Image       string   `json:"image"`
	Team        []string `json:"team" gorm:"type:text;serializer:json"`
	Year        int      `json:"year" gorm:"index" binding:"omitempty,min=2000,max=2100"`
	Category    string   `json:"category" gorm:"size:64;index"`
	RepoURL     string   `json:"repo_url" binding:"omitempty,url"`
	DemoURL     string   `json:"demo_url" binding:"omitempty,url"`
	Featured    bool     `json:"featured" gorm:"index"`
}

func (*Project) Resource() string     { return "project" }
func (p *Project) SlugSource() string { return p.Title }

func (p *Project) Prepare(c TextCleaner) error {
	p.Title = c.Plain(p.Title)
	p.Summary = c.Plain(p.Summary)
	p.Description = c.Rich(p.Description)
	p.Category = strings.ToLower(c.Plain(p.Category))
	p.Team = cleanAll(c.Plain, p.Team)
	p.MarkPublished(time.Now().UTC())
	return nil
}
