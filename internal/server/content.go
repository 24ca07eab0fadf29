package server

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ticsummit/ticsite/api/responses"
	"github.com/ticsummit/ticsite/common/dbutil"
	"github.com/ticsummit/ticsite/internal/auth"
	"github.com/ticsummit/ticsite/internal/content"
	"github.com/ticsummit/ticsite/internal/events"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
)

// reservedQuery are list parameters that are never treated as filters.
var reservedQuery = map[string]bool{"page": true, "per_page": true, "q": true, "sort": true, "all": true}

type contentHandlers[T any, P interface {
	*T
	content.Entity
}] struct {
	s     *Server
	store *content.Store[T, P]
}

// registerContent mounts the CRUD routes of one content type under path.
func registerContent[T any, P interface {
	*T
	content.Entity
}](s *Server, api *gin.RouterGroup, path string, store *content.Store[T, P]) *gin.RouterGroup {
	h := &contentHandlers[T, P]{s: s, store: store}
	editor := auth.RequireRole(models.RoleEditor)

	g := api.Group("/" + path)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", editor, h.create)
	g.PUT("/:id", editor, h.replace)
	g.PATCH("/:id", editor, h.patch)
	g.DELETE("/:id", editor, h.delete)
	return g
}

func (h *contentHandlers[T, P]) list(c *gin.Context) {
	q := content.Query{
		Page:          queryInt(c, "page", 1),
		PerPage:       queryInt(c, "per_page", dbutil.DefaultPerPage),
		PublishedOnly: !(c.Query("all") == "true" && auth.HasRole(c, models.RoleEditor)),
		Search:        c.Query("q"),
		Sort:          c.Query("sort"),
		Filters:       map[string]string{},
	}
	for key, values := range c.Request.URL.Query() {
		if !reservedQuery[key] && len(values) > 0 {
			q.Filters[key] = values[0]
		}
	}

	items, total, err := h.store.List(c.Request.Context(), q)
	if err != nil {
		responses.Fail(c, err)
		return
	}
	p := dbutil.NewPagination(q.Page, q.PerPage)
	responses.Page(c, items, responses.CreatePaginationMeta(p.Page, p.PerPage, total))
}

func (h *contentHandlers[T, P]) get(c *gin.Context) {
	item, err := h.store.Get(c.Request.Context(), c.Param("id"), !auth.HasRole(c, models.RoleEditor))
	if err != nil {
		responses.Fail(c, err)
		return
	}
	responses.OK(c, item)
}

func (h *contentHandlers[T, P]) create(c *gin.Context) {
	item := P(new(T))
	if err := bindJSON(c, item); err != nil {
		responses.Fail(c, err)
		return
	}
	if err := h.store.Create(c.Request.Context(), item); err != nil {
		responses.Fail(c, err)
		return
	}
	h.notify(c.Request.Context(), events.Created, item)
	if published(item) {
		h.notify(c.Request.Context(), events.Published, item)
	}
	responses.Created(c, item)
}

func (h *contentHandlers[T, P]) replace(c *gin.Context) {
	ctx := c.Request.Context()
	item := P(new(T))
	if err := bindJSON(c, item); err != nil {
		responses.Fail(c, err)
		return
	}
	before, err := h.store.Get(ctx, c.Param("id"), false)
	if err != nil {
		responses.Fail(c, err)
		return
	}
	wasPublished := published(before)

	updated, err := h.store.Replace(ctx, c.Param("id"), item)
	if err != nil {
		responses.Fail(c, err)
		return
	}
	h.notifyUpdate(ctx, wasPublished, updated)
	responses.OK(c, updated)
}

func (h *contentHandlers[T, P]) patch(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := c.GetRawData()
	if err != nil {
		responses.Fail(c, errors.Invalid.Explain("failed to read body").Wrap(err))
		return
	}
	var wasPublished bool
	updated, err := h.store.Patch(ctx, c.Param("id"), func(item P) error {
		wasPublished = published(item)
		return bindBody(body, item)
	})
	if err != nil {
		responses.Fail(c, err)
		return
	}
	h.notifyUpdate(ctx, wasPublished, updated)
	responses.OK(c, updated)
}

func (h *contentHandlers[T, P]) delete(c *gin.Context) {
	deleted, err := h.store.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.Fail(c, err)
		return
	}
	h.notify(c.Request.Context(), events.Deleted, deleted)
	responses.NoContent(c)
}

func (h *contentHandlers[T, P]) notifyUpdate(ctx context.Context, wasPublished bool, item P) {
	h.notify(ctx, events.Updated, item)
	if !wasPublished && published(item) {
		h.notify(ctx, events.Published, item)
	}
}

func (h *contentHandlers[T, P]) notify(ctx context.Context, t events.Type, item P) {
	e := events.Event{Type: t, Resource: item.Resource(), ID: item.GetBase().ID}
	if sl, ok := any(item).(interface{ GetSlug() string }); ok {
		e.Slug = sl.GetSlug()
	}
	events.Notify(ctx, h.s.events, h.s.logger, e)
}

func published(item any) bool {
	p, ok := item.(interface{ IsPublished() bool })
	return ok && p.IsPublished()
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
