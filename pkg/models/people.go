package models

import "time"

// Profile holds the fields shared by every person listing.
type Profile struct {
	Name        string `json:"name" gorm:"size:120;not null" binding:"required,max=120"`
	Bio         string `json:"bio" gorm:"type:text"`
	Image       string `json:"image"`
	LinkedInURL string `json:"linkedin_url" binding:"omitempty,url"`
	SortOrder   int    `json:"sort_order" gorm:"index"`
}

func (p *Profile) SlugSource() string { return p.Name }

func (p *Profile) clean(c TextCleaner) {
	p.Name = c.Plain(p.Name)
	p.Bio = c.Plain(p.Bio)
}

type MentorProfile struct {
	Base
	Slugged
	Publication
	Profile
	Title        string   `json:"title" gorm:"size:120"`
	Organization string   `json:"organization" gorm:"size:120"`
	Expertise    []string `json:"expertise" gorm:"type:text;serializer:json"`
}

func (*MentorProfile) Resource() string { return "mentor" }

func (m *MentorProfile) Prepare(c TextCleaner) error {
	m.clean(c)
	m.Title = c.Plain(m.Title)
	m.Organization = c.Plain(m.Organization)
	m.Expertise = cleanAll(c.Plain, m.Expertise)
	m.MarkPublished(time.Now().UTC())
	return nil
}

type AlumniProfile struct {
	Base
	Slugged
	Publication
	Profile
	CohortYear      int    `json:"cohort_year" gorm:"index" binding:"omitempty,min=2000,max=2100"`
	ProjectTitle    string `json:"project_title" gorm:"size:200"`
	CurrentPosition string `json:"current_position" gorm:"size:200"`
}

func (*AlumniProfile) Resource() string { return "alumni" }

func (a *AlumniProfile) Prepare(c TextCleaner) error {
	a.clean(c)
	a.ProjectTitle = c.Plain(a.ProjectTitle)
	a.CurrentPosition = c.Plain(a.CurrentPosition)
	a.MarkPublished(time.Now().UTC())
	return nil
}

type AmbassadorProfile struct {
	Base
	Slugged
	Publication
	Profile
	School string `json:"school" gorm:"size:200"`
	Region string `json:"region" gorm:"size:120;index"`
}

func (*AmbassadorProfile) Resource() string { return "ambassador" }

func (a *AmbassadorProfile) Prepare(c TextCleaner) error {
	a.clean(c)
	a.School = c.Plain(a.School)
	a.Region = c.Plain(a.Region)
	a.MarkPublished(time.Now().UTC())
	return nil
}

type TeamMember struct {
	Base
	Slugged
	Publication
	Profile
	Role string `json:"role" gorm:"size:120"`
}

func (*TeamMember) Resource() string { return "team" }

func (t *TeamMember) Prepare(c TextCleaner) error {
	t.clean(c)
	t.Role = c.Plain(t.Role)
	t.MarkPublished(time.Now().UTC())
	return nil
}
