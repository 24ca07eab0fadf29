package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ticsummit/ticsite/api/responses"
	"github.com/ticsummit/ticsite/internal/auth"
	"github.com/ticsummit/ticsite/pkg/models"
)

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}

type totpCodeRequest struct {
	Code string `json:"code" binding:"required,numeric,len=6"`
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var in auth.RegisterInput
	if err := bindJSON(c, &in); err != nil {
		responses.Fail(c, err)
		return
	}
	user, err := s.auth.Register(c.Request.Context(), in)
	if err != nil {
		responses.Fail(c, err)
		return
	}
	responses.Created(c, user)
}

func (s *Server) handleLogin(c *gin.Context) {
	var in auth.LoginInput
	if err := bindJSON(c, &in); err != nil {
		responses.Fail(c, err)
		return
	}
	res, err := s.auth.Login(c.Request.Context(), in, auth.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()})
	if err != nil {
		responses.Fail(c, err)
		return
	}
	s.auth.SetCookie(c, res)
	responses.OK(c, loginResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: res.User})
}

func (s *Server) handleLogout(c *gin.Context) {
	if p, ok := auth.CurrentPrincipal(c); ok && p.Session != nil {
		if err := s.auth.Logout(c.Request.Context(), p.Session.ID); err != nil {
			responses.Fail(c, err)
			return
		}
	}
	s.auth.ClearCookie(c)
	responses.NoContent(c)
}

func (s *Server) handleSession(c *gin.Context) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		responses.OK(c, sessionResponse{})
		return
	}
	res := sessionResponse{Authenticated: true, User: p.User}
	if p.Session != nil {
		res.ExpiresAt = &p.Session.ExpiresAt
	}
	responses.OK(c, res)
}

func (s *Server) handleTOTPSetup(c *gin.Context) {
	p, _ := auth.CurrentPrincipal(c)
	setup, err := s.auth.SetupTOTP(c.Request.Context(), p.User.ID)
	if err != nil {
		responses.Fail(c, err)
		return
	}
	responses.OK(c, setup)
}

func (s *Server) handleTOTPEnable(c *gin.Context) {
	var req totpCodeRequest
	if err := bindJSON(c, &req); err != nil {
		responses.Fail(c, err)
		return
	}
	p, _ := auth.CurrentPrincipal(c)
	if err := s.auth.EnableTOTP(c.Request.Context(), p.User.ID, req.Code); err != nil {
		responses.Fail(c, err)
		return
	}
	responses.NoContent(c)
}

func (s *Server) handleTOTPDisable(c *gin.Context) {
	var req passwordRequest
	if err := bindJSON(c, &req); err != nil {
		responses.Fail(c, err)
		return
	}
	p, _ := auth.CurrentPrincipal(c)
	if err := s.auth.DisableTOTP(c.Request.Context(), p.User.ID, req.Password); err != nil {
		responses.Fail(c, err)
		return
	}
	s.auth.ClearCookie(c)
	responses.NoContent(c)
}
