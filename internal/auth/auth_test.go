package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/internal/config"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
	"github.com/ticsummit/ticsite/testutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newService(t *testing.T, mutate ...func(*config.AuthConfig)) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := config.AuthConfig{
		JWTSecret:  testSecret,
		SessionTTL: time.Hour,
		CookieName: "ticsite_session",
		Issuer:     "ticsite-test",
	}
	for _, m := range mutate {
		m(&cfg)
	}
	svc, err := NewService(db, cfg, zap.NewNop())
	require.NoError(t, err)
	svc.cost = bcrypt.MinCost
	return svc, db
}

func register(t *testing.T, svc *Service, email string) *models.User {
	t.Helper()
	u, err := svc.Register(context.Background(), RegisterInput{Email: email, Password: "correct horse", Name: "Test"})
	require.NoError(t, err)
	return u
}

func TestNewServiceRejectsShortSecret(t *testing.T) {
	_, err := NewService(nil, config.AuthConfig{JWTSecret: "short"}, zap.NewNop())
	assert.Error(t, err)
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first := register(t, svc, "Founder@Example.com")
	assert.Equal(t, models.RoleAdmin, first.Role)
	assert.Equal(t, "founder@example.com", first.Email)

	_, err := svc.Register(ctx, RegisterInput{Email: "second@example.com", Password: "correct horse"})
	assert.True(t, errors.Is(err, errors.Forbidden))
}

func TestRegisterOpenAndDuplicate(t *testing.T) {
	svc, _ := newService(t, func(c *config.AuthConfig) { c.AllowRegistration = true })
	register(t, svc, "a@example.com")

	second := register(t, svc, "b@example.com")
	assert.Equal(t, models.RoleMember, second.Role)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "A@example.com", Password: "correct horse"})
	assert.True(t, errors.Is(err, errors.Conflict))
}

func TestLoginAuthenticateLogout(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	user := register(t, svc, "a@example.com")

	_, err := svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "wrong"}, ClientInfo{})
	assert.True(t, errors.Is(err, errors.Unauthorized))
	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "x"}, ClientInfo{})
	assert.True(t, errors.Is(err, errors.Unauthorized))

	res, err := svc.Login(ctx, LoginInput{Email: "A@example.com", Password: "correct horse"}, ClientInfo{IP: "1.2.3.4", UserAgent: "test"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.NotNil(t, res.User.LastLoginAt)

	p, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.User.ID)
	assert.Equal(t, "1.2.3.4", p.Session.IPAddress)

	require.NoError(t, svc.Logout(ctx, p.Session.ID))
	_, err = svc.Authenticate(ctx, res.Token)
	assert.True(t, errors.Is(err, errors.Unauthorized))
}

func TestAuthenticateRejectsForgedAndExpired(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	register(t, svc, "a@example.com")
	res, err := svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "correct horse"}, ClientInfo{})
	require.NoError(t, err)

	forged := []byte("ffffffffffffffffffffffffffffffff")
	claims := &TokenClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(res.Token, claims)
	require.NoError(t, err)
	tampered, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(forged)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, tampered)
	assert.True(t, errors.Is(err, errors.Unauthorized))

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.True(t, errors.Is(err, errors.Unauthorized))

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	_, err = svc.Authenticate(ctx, res.Token)
	assert.True(t, errors.Is(err, errors.Unauthorized))
}

func TestTOTPFlow(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	user := register(t, svc, "a@example.com")

	setup, err := svc.SetupTOTP(ctx, user.ID)
	require.NoError(t, err)
	assert.Contains(t, setup.URL, "otpauth://totp/")

	assert.True(t, errors.Is(svc.EnableTOTP(ctx, user.ID, "000000"), errors.Invalid))

	code, err := totp.GenerateCode(setup.Secret, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, svc.EnableTOTP(ctx, user.ID, code))

	_, err = svc.SetupTOTP(ctx, user.ID)
	assert.True(t, errors.Is(err, errors.Conflict))

	login := LoginInput{Email: "a@example.com", Password: "correct horse"}
	_, err = svc.Login(ctx, login, ClientInfo{})
	var appErr *errors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "totp_required", appErr.Kind)

	login.TOTP = "123456"
	if login.TOTP == code {
		login.TOTP = "654321"
	}
	_, err = svc.Login(ctx, login, ClientInfo{})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "totp_invalid", appErr.Kind)

	login.TOTP = code
	res, err := svc.Login(ctx, login, ClientInfo{})
	require.NoError(t, err)

	assert.True(t, errors.Is(svc.DisableTOTP(ctx, user.ID, "wrong"), errors.Unauthorized))
	require.NoError(t, svc.DisableTOTP(ctx, user.ID, "correct horse"))

	_, err = svc.Authenticate(ctx, res.Token)
	assert.True(t, errors.Is(err, errors.Unauthorized), "sessions are revoked when 2FA is disabled")
}

func TestCleanupSessions(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	user := register(t, svc, "a@example.com")
	now := time.Now().UTC()
	revoked := now.Add(-time.Minute)

	require.NoError(t, db.Create(&[]models.Session{
		{UserID: user.ID, TokenID: "live", ExpiresAt: now.Add(time.Hour)},
		{UserID: user.ID, TokenID: "expired", ExpiresAt: now.Add(-time.Hour)},
		{UserID: user.ID, TokenID: "revoked", ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked},
	}).Error)

	n, err := svc.CleanupSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	var left []models.Session
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "live", left[0].TokenID)
}

func TestJanitorStopsOnCancel(t *testing.T) {
	svc, _ := newService(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewJanitor(svc, 10*time.Millisecond, zap.NewNop()).Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestAdminUserManagement(t *testing.T) {
	svc, _ := newService(t, func(c *config.AuthConfig) { c.AllowRegistration = true })
	ctx := context.Background()
	admin := register(t, svc, "admin@example.com")
	member := register(t, svc, "member@example.com")

	users, total, err := svc.ListUsers(ctx, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 2)

	updated, err := svc.SetRole(ctx, admin.ID, member.ID, models.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, updated.Role)

	_, err = svc.SetRole(ctx, admin.ID, admin.ID, models.RoleMember)
	assert.True(t, errors.Is(err, errors.Forbidden))
	_, err = svc.SetRole(ctx, admin.ID, member.ID, "owner")
	assert.True(t, errors.Is(err, errors.Invalid))

	assert.True(t, errors.Is(svc.DeleteUser(ctx, admin.ID, admin.ID), errors.Forbidden))
	require.NoError(t, svc.DeleteUser(ctx, admin.ID, member.ID))
	assert.True(t, errors.Is(svc.DeleteUser(ctx, admin.ID, member.ID), errors.NotFound))
}

func TestMiddlewareAndRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newService(t, func(c *config.AuthConfig) { c.AllowRegistration = true })
	ctx := context.Background()
	register(t, svc, "admin@example.com")
	register(t, svc, "member@example.com")

	r := gin.New()
	r.Use(svc.Middleware())
	r.GET("/open", func(c *gin.Context) {
		_, ok := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})
	r.GET("/editor", RequireRole(models.RoleEditor), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(path string, setup func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if setup != nil {
			setup(req)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.JSONEq(t, `{"authenticated":false}`, do("/open", nil).Body.String())
	assert.Equal(t, http.StatusUnauthorized, do("/editor", nil).Code)

	member, err := svc.Login(ctx, LoginInput{Email: "member@example.com", Password: "correct horse"}, ClientInfo{})
	require.NoError(t, err)
	admin, err := svc.Login(ctx, LoginInput{Email: "admin@example.com", Password: "correct horse"}, ClientInfo{})
	require.NoError(t, err)

	w := do("/editor", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+member.Token) })
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do("/editor", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "ticsite_session", Value: admin.Token})
	})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do("/open", func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") })
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do("/open", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "ticsite_session", Value: "stale"})
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "ticsite_session=;")
}

func TestOIDCVerifier(t *testing.T) {
	key := []byte("external-provider-shared-secret!")
	cfg := config.OIDCConfig{Issuer: "https://id.example.com/", Audience: []string{"ticsite"}}
	v, err := newOIDCVerifier(func(context.Context) (interface{}, error) { return key, nil }, validator.HS256, cfg)
	require.NoError(t, err)

	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	email, err := v.Verify(context.Background(), sign(jwt.MapClaims{
		"iss": cfg.Issuer, "aud": "ticsite", "sub": "ext|1", "exp": exp, "email": "editor@example.com",
	}))
	require.NoError(t, err)
	assert.Equal(t, "editor@example.com", email)

	_, err = v.Verify(context.Background(), sign(jwt.MapClaims{"iss": cfg.Issuer, "aud": "ticsite", "exp": exp}))
	assert.Error(t, err, "email claim is required")

	_, err = v.Verify(context.Background(), sign(jwt.MapClaims{"iss": "https://evil.example.com/", "aud": "ticsite", "exp": exp, "email": "x@example.com"}))
	assert.Error(t, err)
}
