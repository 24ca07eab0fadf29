package models

import (
	"strings"
	"time"
)

type FAQ struct {
	Base
	Publication
	Question  string `json:"question" gorm:"size:300;not null" binding:"required,max=300"`
	Answer    string `json:"answer" gorm:"type:text" binding:"required"`
	Category  string `json:"category" gorm:"size:64;index"`
	SortOrder int    `json:"sort_order" gorm:"index"`
}

func (*FAQ) Resource() string { return "faq" }

func (f *FAQ) Prepare(c TextCleaner) error {
	f.Question = c.Plain(f.Question)
	f.Answer = c.Rich(f.Answer)
	f.Category = strings.ToLower(c.Plain(f.Category))
	f.MarkPublished(time.Now().UTC())
	return nil
}

// SiteSetting is a keyed JSON document, e.g. the hero banner or the summit
// date. Value always holds valid JSON text.
type SiteSetting struct {
	Base
	Key         string `json:"key" gorm:"uniqueIndex;size:96;not null"`
	Value       string `json:"-" gorm:"type:text;not null"`
	Description string `json:"description" gorm:"size:300"`
}

// ContactMessage is a submission of the public contact form.
type ContactMessage struct {
	Base
	Name      string `json:"name" gorm:"size:120;not null" binding:"required,max=120"`
	Email     string `json:"email" gorm:"size:254;not null" binding:"required,email,max=254"`
	Subject   string `json:"subject" gorm:"size:200" binding:"max=200"`
	Message   string `json:"message" gorm:"type:text;not null" binding:"required,max=5000"`
	IPAddress string `json:"ip_address" gorm:"size:64"`
	Read      bool   `json:"read" gorm:"index"`
}

func (m *ContactMessage) Prepare(c TextCleaner) {
	m.Name = c.Plain(m.Name)
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	m.Subject = c.Plain(m.Subject)
	m.Message = c.Plain(m.Message)
}
