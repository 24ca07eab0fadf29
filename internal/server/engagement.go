package server

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ticsummit/ticsite/api/responses"
	"github.com/ticsummit/ticsite/internal/content"
	"github.com/ticsummit/ticsite/internal/engagement"
)

// registerEngagement mounts view and like routes on a content group. The
// :id parameter accepts an id or a slug of a published item.
func registerEngagement[T any, P interface {
	*T
	content.Entity
}](s *Server, rg *gin.RouterGroup, target engagement.Target, store *content.Store[T, P]) {
	resolve := func(c *gin.Context) (uuid.UUID, bool) {
		item, err := store.Get(c.Request.Context(), c.Param("id"), true)
		if err != nil {
			responses.Fail(c, err)
			return uuid.Nil, false
		}
		return item.GetBase().ID, true
	}

	rg.POST("/:id/views", s.limiter.Middleware("view"), func(c *gin.Context) {
		id, ok := resolve(c)
		if !ok {
			return
		}
		res, err := s.engagement.RecordView(c.Request.Context(), target, id, c.ClientIP(), c.Request.UserAgent())
		if err != nil {
			responses.Fail(c, err)
			return
		}
		responses.OK(c, res)
	})

	rg.GET("/:id/engagement", func(c *gin.Context) {
		id, ok := resolve(c)
		if !ok {
			return
		}
		counts, err := s.engagement.Status(c.Request.Context(), target, id, c.ClientIP())
		if err != nil {
			responses.Fail(c, err)
			return
		}
		responses.OK(c, counts)
	})

	rg.POST("/:id/likes", s.limiter.Middleware("like"), func(c *gin.Context) {
		id, ok := resolve(c)
		if !ok {
			return
		}
		counts, err := s.engagement.Like(c.Request.Context(), target, id, c.ClientIP())
		if err != nil {
			responses.Fail(c, err)
			return
		}
		responses.OK(c, counts)
	})

	rg.DELETE("/:id/likes", s.limiter.Middleware("like"), func(c *gin.Context) {
		id, ok := resolve(c)
		if !ok {
			return
		}
		counts, err := s.engagement.Unlike(c.Request.Context(), target, id, c.ClientIP())
		if err != nil {
			responses.Fail(c, err)
			return
		}
		responses.OK(c, counts)
	})
}
