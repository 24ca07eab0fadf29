package server

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ticsummit/ticsite/api/responses"
	"github.com/ticsummit/ticsite/common/dbutil"
	"github.com/ticsummit/ticsite/internal/auth"
	"github.com/ticsummit/ticsite/pkg/errors"
)

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

type readRequest struct {
	Read *bool `json:"read" binding:"required"`
}

func paramID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		responses.Fail(c, errors.Invalid.Explain("invalid id %q", c.Param("id")).WithField("id", "uuid", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleListUsers(c *gin.Context) {
	page, perPage := queryInt(c, "page", 1), queryInt(c, "per_page", dbutil.DefaultPerPage)
	users, total, err := s.auth.ListUsers(c.Request.Context(), page, perPage)
	if err != nil {
		responses.Fail(c, err)
		return
	}
	p := dbutil.NewPagination(page, perPage)
	responses.Page(c, users, responses.CreatePaginationMeta(p.Page, p.PerPage, total))
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req roleRequest
	if err := bindJSON(c, &req); err != nil {
		responses.Fail(c, err)
		return
	}
	actor, _ := auth.CurrentPrincipal(c)
	user, err := s.auth.SetRole(c.Request.Context(), actor.User.ID, id, req.Role)
	if err != nil {
		responses.Fail(c, err)
		return
	}
	responses.OK(c, user)
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor, _ := auth.CurrentPrincipal(c)
	if err := s.auth.DeleteUser(c.Request.Context(), actor.User.ID, id); err != nil {
		responses.Fail(c, err)
		return
	}
	responses.NoContent(c)
}

func (s *Server) handleListContact(c *gin.Context) {
	page, perPage := queryInt(c, "page", 1), queryInt(c, "per_page", dbutil.DefaultPerPage)
	msgs, total, err := s.catalog.Contact.List(c.Request.Context(), page, perPage, c.Query("unread") == "true")
	if err != nil {
		responses.Fail(c, err)
		return
	}
	p := dbutil.NewPagination(page, perPage)
	responses.Page(c, msgs, responses.CreatePaginationMeta(p.Page, p.PerPage, total))
}

func (s *Server) handleUpdateContact(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req readRequest
	if err := bindJSON(c, &req); err != nil {
		responses.Fail(c, err)
		return
	}
	msg, err := s.catalog.Contact.MarkRead(c.Request.Context(), id, *req.Read)
	if err != nil {
		responses.Fail(c, err)
		return
	}
	responses.OK(c, msg)
}

func (s *Server) handleDeleteContact(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.catalog.Contact.Delete(c.Request.Context(), id); err != nil {
		responses.Fail(c, err)
		return
	}
	responses.NoContent(c)
}

func (s *Server) handleReconcile(c *gin.Context) {
	report, err := s.engagement.Reconcile(c.Request.Context())
	if err != nil {
		responses.Fail(c, err)
		return
	}
	responses.OK(c, report)
}
