package auth

import (
	"net/http"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/gin-gonic/gin"

	"github.com/ticsummit/ticsite/api/responses"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
)

const principalKey = "auth.principal"

// Middleware resolves the caller from the Authorization header or the
// session cookie. Anonymous requests pass through; invalid credentials are
// rejected.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer, err := jwtmiddleware.AuthHeaderTokenExtractor(c.Request)
		if err != nil {
			responses.Fail(c, errors.Unauthorized.Explain("authorization header must be Bearer {token}"))
			return
		}

		var p *Principal
		switch {
		case bearer != "":
			p, err = s.Authenticate(c.Request.Context(), bearer)
			if err != nil && s.oidc != nil && errors.Is(err, errNoSession) {
				p, err = s.AuthenticateExternal(c.Request.Context(), bearer)
			}
		default:
			cookie, cerr := c.Cookie(s.cfg.CookieName)
			if cerr != nil || cookie == "" {
				c.Next()
				return
			}
			p, err = s.Authenticate(c.Request.Context(), cookie)
			if err != nil {
				// A stale cookie is treated as anonymous and cleared.
				s.ClearCookie(c)
				c.Next()
				return
			}
		}
		if err != nil {
			responses.Fail(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// CurrentPrincipal returns the authenticated caller, if any.
func CurrentPrincipal(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// RequireRole rejects anonymous callers with 401 and callers below min with 403.
func RequireRole(min string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			responses.Fail(c, errors.Unauthorized.Explain("authentication required"))
			return
		}
		if !models.RoleAtLeast(p.User.Role, min) {
			responses.Fail(c, errors.Forbidden.Explain("%s role required", min))
			return
		}
		c.Next()
	}
}

// HasRole reports whether the caller holds at least min.
func HasRole(c *gin.Context, min string) bool {
	p, ok := CurrentPrincipal(c)
	return ok && models.RoleAtLeast(p.User.Role, min)
}

// SetCookie stores the session token in an HttpOnly cookie.
func (s *Service) SetCookie(c *gin.Context, res *LoginResult) {
	maxAge := int(res.ExpiresAt.Sub(s.now()).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.CookieName, res.Token, maxAge, "/", "", s.cfg.CookieSecure, true)
}

func (s *Service) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.CookieName, "", -1, "/", "", s.cfg.CookieSecure, true)
}
