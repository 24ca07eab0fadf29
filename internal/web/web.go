// Package web renders the public site from the content stores.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ticsummit/ticsite/internal/content"
	"github.com/ticsummit/ticsite/internal/engagement"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const perPage = 12

var pageNames = []string{"home", "blog", "post", "projects", "project", "people", "faq", "error"}

var funcs = template.FuncMap{
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2 January 2006")
	},
	// safeHTML marks markup that was sanitized on write.
	"safeHTML": func(s string) template.HTML { return template.HTML(s) },
}

// Pages serves the server rendered site.
type Pages struct {
	catalog    *content.Catalog
	engagement *engagement.Service
	log        *zap.Logger
	templates  map[string]*template.Template
	now        func() time.Time
}

type view struct {
	Title string
	Year  int
	Data  interface{}
}

type listPage struct {
	Items      interface{}
	Prev, Next int
}

type person struct {
	Name        string
	Subtitle    string
	Bio         string
	Image       string
	LinkedInURL string
}

type hero struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type errorPage struct {
	Status  int
	Message string
}

func New(catalog *content.Catalog, eng *engagement.Service, log *zap.Logger) (*Pages, error) {
	p := &Pages{
		catalog:    catalog,
		engagement: eng,
		log:        log.Named("web"),
		templates:  make(map[string]*template.Template, len(pageNames)),
		now:        time.Now,
	}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/cards.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		p.templates[name] = t
	}
	return p, nil
}

func (p *Pages) Register(r gin.IRouter) {
	r.GET("/", p.home)
	r.GET("/blog", p.blog)
	r.GET("/blog/:slug", p.post)
	r.GET("/projects", p.projects)
	r.GET("/projects/:slug", p.project)
	r.GET("/mentors", p.mentors)
	r.GET("/alumni", p.alumni)
	r.GET("/ambassadors", p.ambassadors)
	r.GET("/team", p.team)
	r.GET("/faq", p.faq)
}

func (p *Pages) NotFound(c *gin.Context) {
	p.render(c, http.StatusNotFound, "error", "Not found", errorPage{
		Status:  http.StatusNotFound,
		Message: "The page you are looking for does not exist.",
	})
}

func (p *Pages) home(c *gin.Context) {
	ctx := c.Request.Context()
	posts, _, err := p.catalog.Posts.List(ctx, content.Query{Page: 1, PerPage: 3, PublishedOnly: true})
	if err != nil {
		p.fail(c, err)
		return
	}
	projects, _, err := p.catalog.Projects.List(ctx, content.Query{
		Page: 1, PerPage: 6, PublishedOnly: true, Filters: map[string]string{"featured": "true"},
	})
	if err != nil {
		p.fail(c, err)
		return
	}
	p.render(c, http.StatusOK, "home", "", gin.H{"Hero": p.hero(ctx), "Posts": posts, "Projects": projects})
}

func (p *Pages) hero(ctx context.Context) hero {
	var h hero
	s, err := p.catalog.Settings.Get(ctx, "hero")
	if err != nil {
		if !errors.Is(err, errors.NotFound) {
			p.log.Warn("failed to load hero setting", zap.Error(err))
		}
		return h
	}
	if err := json.Unmarshal(s.Value, &h); err != nil {
		p.log.Warn("hero setting is not an object", zap.Error(err))
	}
	return h
}

func (p *Pages) blog(c *gin.Context) {
	page := pageParam(c)
	posts, total, err := p.catalog.Posts.List(c.Request.Context(), content.Query{Page: page, PerPage: perPage, PublishedOnly: true})
	if err != nil {
		p.fail(c, err)
		return
	}
	p.render(c, http.StatusOK, "blog", "Blog", paged(posts, page, total))
}

func (p *Pages) post(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := p.catalog.Posts.Get(ctx, c.Param("slug"), true)
	if err != nil {
		p.fail(c, err)
		return
	}
	views := post.ViewCount
	res, err := p.engagement.RecordView(ctx, engagement.TargetPost, post.ID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		p.log.Warn("failed to record view", zap.String("post", post.Slug), zap.Error(err))
	} else {
		views = res.Views
	}
	p.render(c, http.StatusOK, "post", post.Title, gin.H{"Post": post, "Views": views})
}

func (p *Pages) projects(c *gin.Context) {
	page := pageParam(c)
	q := content.Query{Page: page, PerPage: perPage, PublishedOnly: true, Filters: map[string]string{}}
	if cat := c.Query("category"); cat != "" {
		q.Filters["category"] = cat
	}
	items, total, err := p.catalog.Projects.List(c.Request.Context(), q)
	if err != nil {
		p.fail(c, err)
		return
	}
	p.render(c, http.StatusOK, "projects", "Projects", paged(items, page, total))
}

func (p *Pages) project(c *gin.Context) {
	project, err := p.catalog.Projects.Get(c.Request.Context(), c.Param("slug"), true)
	if err != nil {
		p.fail(c, err)
		return
	}
	p.render(c, http.StatusOK, "project", project.Title, project)
}

func (p *Pages) mentors(c *gin.Context) {
	page := pageParam(c)
	items, total, err := p.catalog.Mentors.List(c.Request.Context(), content.Query{Page: page, PerPage: perPage, PublishedOnly: true})
	if err != nil {
		p.fail(c, err)
		return
	}
	people := make([]person, 0, len(items))
	for _, m := range items {
		people = append(people, personOf(m.Profile, joinNonEmpty(m.Title, m.Organization)))
	}
	p.render(c, http.StatusOK, "people", "Mentors", paged(people, page, total))
}

func (p *Pages) alumni(c *gin.Context) {
	page := pageParam(c)
	items, total, err := p.catalog.Alumni.List(c.Request.Context(), content.Query{Page: page, PerPage: perPage, PublishedOnly: true})
	if err != nil {
		p.fail(c, err)
		return
	}
	people := make([]person, 0, len(items))
	for _, a := range items {
		cohort := ""
		if a.CohortYear > 0 {
			cohort = "Class of " + strconv.Itoa(a.CohortYear)
		}
		people = append(people, personOf(a.Profile, joinNonEmpty(cohort, a.ProjectTitle, a.CurrentPosition)))
	}
	p.render(c, http.StatusOK, "people", "Alumni", paged(people, page, total))
}

func (p *Pages) ambassadors(c *gin.Context) {
	page := pageParam(c)
	items, total, err := p.catalog.Ambassadors.List(c.Request.Context(), content.Query{Page: page, PerPage: perPage, PublishedOnly: true})
	if err != nil {
		p.fail(c, err)
		return
	}
	people := make([]person, 0, len(items))
	for _, a := range items {
		people = append(people, personOf(a.Profile, joinNonEmpty(a.School, a.Region)))
	}
	p.render(c, http.StatusOK, "people", "Ambassadors", paged(people, page, total))
}

func (p *Pages) team(c *gin.Context) {
	page := pageParam(c)
	items, total, err := p.catalog.Team.List(c.Request.Context(), content.Query{Page: page, PerPage: perPage, PublishedOnly: true})
	if err != nil {
		p.fail(c, err)
		return
	}
	people := make([]person, 0, len(items))
	for _, m := range items {
		people = append(people, personOf(m.Profile, m.Role))
	}
	p.render(c, http.StatusOK, "people", "Team", paged(people, page, total))
}

func (p *Pages) faq(c *gin.Context) {
	items, _, err := p.catalog.FAQs.List(c.Request.Context(), content.Query{Page: 1, PerPage: 100, PublishedOnly: true})
	if err != nil {
		p.fail(c, err)
		return
	}
	p.render(c, http.StatusOK, "faq", "FAQ", items)
}

func (p *Pages) fail(c *gin.Context, err error) {
	if errors.Is(err, errors.NotFound) {
		p.NotFound(c)
		return
	}
	p.log.Error("failed to render page", zap.String("path", c.Request.URL.Path), zap.Error(err))
	p.render(c, http.StatusInternalServerError, "error", "Error", errorPage{
		Status:  http.StatusInternalServerError,
		Message: "Something went wrong. Please try again later.",
	})
}

func (p *Pages) render(c *gin.Context, status int, name, title string, data interface{}) {
	var buf bytes.Buffer
	err := p.templates[name].ExecuteTemplate(&buf, "layout", view{Title: title, Year: p.now().Year(), Data: data})
	if err != nil {
		p.log.Error("failed to execute template", zap.String("template", name), zap.Error(err))
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func paged(items interface{}, page int, total int64) listPage {
	lp := listPage{Items: items}
	if page > 1 {
		lp.Prev = page - 1
	}
	if int64(page*perPage) < total {
		lp.Next = page + 1
	}
	return lp
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func personOf(p models.Profile, subtitle string) person {
	return person{Name: p.Name, Subtitle: subtitle, Bio: p.Bio, Image: p.Image, LinkedInURL: p.LinkedInURL}
}

func joinNonEmpty(parts ...string) string {
	var out string
	for _, s := range parts {
		if s == "" {
			continue
		}
		if out != "" {
			out += " · "
		}
		out += s
	}
	return out
}
