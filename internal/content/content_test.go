package content

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
	"github.com/ticsummit/ticsite/testutil"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	return NewCatalog(testutil.NewDB(t), NewSanitizer())
}

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello, World", "hello-world"},
		{"  Café Déjà Vu!  ", "cafe-deja-vu"},
		{"TIC Summit 2026 · Day 1", "tic-summit-2026-day-1"},
		{"---", ""},
		{"ÅNGSTRÖM", "angstrom"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Slugify(tc.in), tc.in)
		if tc.want != "" {
			assert.True(t, ValidSlug(tc.want), tc.want)
		}
	}
	assert.LessOrEqual(t, len(Slugify(string(make([]byte, 300))+"a very long title")), maxSlugLen)
	assert.False(t, ValidSlug("Bad Slug"))
	assert.False(t, ValidSlug("double--dash"))
}

func TestSanitizer(t *testing.T) {
	s := NewSanitizer()

	assert.Equal(t, "AT&T rocks", s.Plain(" <b>AT&amp;T</b> rocks<script>alert(1)</script> "))
	assert.NotContains(t, s.Rich(`<p onclick="x()">hi</p><script>bad()</script>`), "script")
	assert.NotContains(t, s.Rich(`<p onclick="x()">hi</p>`), "onclick")

	html, err := s.Markdown("# Title\n\nSome **bold** text and <script>alert(1)</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, "<table>")
	assert.NotContains(t, html, "<script")

	empty, err := s.Markdown("   ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCreateDerivesUniqueSlugs(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	first := &models.BlogPost{Title: "Demo Day Recap", Content: "**hi**"}
	require.NoError(t, c.Posts.Create(ctx, first))
	second := &models.BlogPost{Title: "Demo Day Recap"}
	require.NoError(t, c.Posts.Create(ctx, second))

	assert.Equal(t, "demo-day-recap", first.Slug)
	assert.Equal(t, "demo-day-recap-2", second.Slug)
	assert.Contains(t, first.ContentHTML, "<strong>hi</strong>")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateRejectsTakenSlug(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	require.NoError(t, c.Mentors.Create(ctx, &models.MentorProfile{Profile: models.Profile{Name: "Ada Lovelace"}}))

	err := c.Mentors.Create(ctx, &models.MentorProfile{
		Slugged: models.Slugged{Slug: "ada-lovelace"},
		Profile: models.Profile{Name: "Someone Else"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Conflict))
}

func TestCreateIgnoresClientCounters(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	p := &models.Project{Title: "Solar Kiosk", Counters: models.Counters{ViewCount: 999, LikeCount: 5}}
	require.NoError(t, c.Projects.Create(ctx, p))

	got, err := c.Projects.Get(ctx, p.ID.String(), false)
	require.NoError(t, err)
	assert.Zero(t, got.ViewCount)
	assert.Zero(t, got.LikeCount)
}

func TestGetByIDOrSlugAndDrafts(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	draft := &models.BlogPost{Title: "Draft"}
	require.NoError(t, c.Posts.Create(ctx, draft))

	got, err := c.Posts.Get(ctx, "draft", false)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)

	_, err = c.Posts.Get(ctx, "draft", true)
	assert.True(t, errors.Is(err, errors.NotFound))

	_, err = c.Posts.Get(ctx, "missing", false)
	assert.True(t, errors.Is(err, errors.NotFound))

	_, err = c.FAQs.Get(ctx, "not-a-uuid", false)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestPublishStampsOnce(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	post := &models.BlogPost{Title: "Launch"}
	require.NoError(t, c.Posts.Create(ctx, post))
	assert.Nil(t, post.PublishedAt)

	updated, err := c.Posts.Patch(ctx, post.Slug, func(p *models.BlogPost) error {
		p.Published = true
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, updated.PublishedAt)
	stamp := *updated.PublishedAt

	replaced, err := c.Posts.Replace(ctx, post.ID.String(), &models.BlogPost{
		Title:       "Launch v2",
		Publication: models.Publication{Published: true},
	})
	require.NoError(t, err)
	require.NotNil(t, replaced.PublishedAt)
	assert.True(t, stamp.Equal(*replaced.PublishedAt))
	assert.Equal(t, "launch-v2", replaced.Slug)
	assert.Equal(t, post.ID, replaced.ID)
}

func TestClientPublishDateIsIgnored(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	backdated := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

	draft := &models.BlogPost{Title: "Draft", Publication: models.Publication{PublishedAt: &backdated}}
	require.NoError(t, c.Posts.Create(ctx, draft))
	assert.Nil(t, draft.PublishedAt)

	live := &models.BlogPost{Title: "Live", Publication: models.Publication{Published: true, PublishedAt: &backdated}}
	require.NoError(t, c.Posts.Create(ctx, live))
	require.NotNil(t, live.PublishedAt)
	assert.WithinDuration(t, time.Now(), *live.PublishedAt, time.Minute)
	stamp := *live.PublishedAt

	replaced, err := c.Posts.Replace(ctx, live.ID.String(), &models.BlogPost{
		Title:       "Live",
		Publication: models.Publication{Published: true, PublishedAt: &backdated},
	})
	require.NoError(t, err)
	require.NotNil(t, replaced.PublishedAt)
	assert.WithinDuration(t, stamp, *replaced.PublishedAt, time.Second)

	patched, err := c.Posts.Patch(ctx, draft.ID.String(), func(p *models.BlogPost) error {
		p.PublishedAt = &backdated
		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, patched.PublishedAt)
}

func TestPatchKeepsIdentityAndCounters(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	c := NewCatalog(db, NewSanitizer())

	p := &models.Project{Title: "Water Filter"}
	require.NoError(t, c.Projects.Create(ctx, p))
	require.NoError(t, db.Model(&models.Project{}).Where("id = ?", p.ID).Update("like_count", 3).Error)

	got, err := c.Projects.Patch(ctx, p.Slug, func(p *models.Project) error {
		p.Summary = "<i>clean</i> water"
		p.LikeCount = 0
		p.Slug = "water-filter"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, int64(3), got.LikeCount)
	assert.Equal(t, "clean water", got.Summary)
}

func TestPatchSlugCollision(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	require.NoError(t, c.Team.Create(ctx, &models.TeamMember{Profile: models.Profile{Name: "Grace"}}))
	other := &models.TeamMember{Profile: models.Profile{Name: "Linus"}}
	require.NoError(t, c.Team.Create(ctx, other))

	_, err := c.Team.Patch(ctx, other.Slug, func(m *models.TeamMember) error {
		m.Slug = "grace"
		return nil
	})
	assert.True(t, errors.Is(err, errors.Conflict))
}

func TestListFiltersSearchAndPaging(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	for i, name := range []string{"Amina", "Bruno", "Chen", "Dara"} {
		a := &models.AlumniProfile{
			Profile:     models.Profile{Name: name, SortOrder: i},
			CohortYear:  2024 + i%2,
			Publication: models.Publication{Published: name != "Dara"},
		}
		require.NoError(t, c.Alumni.Create(ctx, a))
	}

	all, total, err := c.Alumni.List(ctx, Query{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, all, 4)

	pub, total, err := c.Alumni.List(ctx, Query{PublishedOnly: true, Filters: map[string]string{"cohort_year": "2025"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, pub, 1)
	assert.Equal(t, "Bruno", pub[0].Name)

	found, _, err := c.Alumni.List(ctx, Query{Search: "CHE"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Chen", found[0].Name)

	page, total, err := c.Alumni.List(ctx, Query{Page: 2, PerPage: 3, Sort: "name"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Dara", page[0].Name)

	none, _, err := c.Alumni.List(ctx, Query{Search: "100%"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListRejectsMistypedFilter(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	require.NoError(t, c.Projects.Create(ctx, &models.Project{Title: "Drone", Year: 2025, Featured: true}))

	got, _, err := c.Projects.List(ctx, Query{Filters: map[string]string{"year": "2025", "featured": "true"}})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, _, err = c.Projects.List(ctx, Query{Filters: map[string]string{"year": "soon"}})
	assert.True(t, errors.Is(err, errors.Invalid))
}

func TestDeleteRemovesEngagement(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	c := NewCatalog(db, NewSanitizer())

	post := &models.BlogPost{Title: "Bye"}
	require.NoError(t, c.Posts.Create(ctx, post))
	require.NoError(t, db.Create(&models.View{TargetType: "post", TargetID: post.ID, IPAddress: "1.1.1.1"}).Error)
	require.NoError(t, db.Create(&models.Like{TargetType: "post", TargetID: post.ID, IPAddress: "1.1.1.1"}).Error)

	_, err := c.Posts.Delete(ctx, "bye")
	require.NoError(t, err)

	var views, likes int64
	db.Model(&models.View{}).Count(&views)
	db.Model(&models.Like{}).Count(&likes)
	assert.Zero(t, views)
	assert.Zero(t, likes)

	_, err = c.Posts.Delete(ctx, "bye")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	_, err := c.Settings.Put(ctx, "hero", json.RawMessage(`{"title":"TIC Summit"}`), "landing hero")
	require.NoError(t, err)
	s, err := c.Settings.Put(ctx, "hero", json.RawMessage(`{"title":"TIC Summit 2026"}`), "landing hero")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"TIC Summit 2026"}`, string(s.Value))

	all, err := c.Settings.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = c.Settings.Put(ctx, "bad key", json.RawMessage(`1`), "")
	assert.True(t, errors.Is(err, errors.Invalid))
	_, err = c.Settings.Put(ctx, "x", json.RawMessage(`{nope`), "")
	assert.True(t, errors.Is(err, errors.Invalid))

	require.NoError(t, c.Settings.Delete(ctx, "hero"))
	assert.True(t, errors.Is(c.Settings.Delete(ctx, "hero"), errors.NotFound))
	_, err = c.Settings.Get(ctx, "hero")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestContactInbox(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	msg := &models.ContactMessage{Name: "Sam", Email: " Sam@Example.com ", Message: "<b>Hello</b>"}
	require.NoError(t, c.Contact.Submit(ctx, msg, "10.0.0.1"))
	assert.Equal(t, "sam@example.com", msg.Email)
	assert.Equal(t, "Hello", msg.Message)

	empty := &models.ContactMessage{Name: "X", Email: "x@example.com", Message: "<script></script>"}
	assert.True(t, errors.Is(c.Contact.Submit(ctx, empty, "10.0.0.1"), errors.Invalid))

	unread, total, err := c.Contact.List(ctx, 1, 10, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, unread, 1)

	_, err = c.Contact.MarkRead(ctx, msg.ID, true)
	require.NoError(t, err)
	unread, _, err = c.Contact.List(ctx, 1, 10, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	require.NoError(t, c.Contact.Delete(ctx, msg.ID))
	assert.True(t, errors.Is(c.Contact.Delete(ctx, msg.ID), errors.NotFound))
}
