// Package auth manages accounts, sessions and role checks.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/common/dbutil"
	"github.com/ticsummit/ticsite/internal/config"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/metrics"
	"github.com/ticsummit/ticsite/pkg/models"
)

var (
	errBadCredentials = errors.Unauthorized.Explain("invalid email or password")
	errTOTPRequired   = errors.Unauthorized.Explain("two factor code required").Reason("totp_required")
	errBadTOTP        = errors.Unauthorized.Explain("invalid two factor code").Reason("totp_invalid")
	errNoSession      = errors.Unauthorized.Explain("session is invalid or expired")
)

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"max=120"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	TOTP     string `json:"totp" binding:"omitempty,numeric,len=6"`
}

// ClientInfo describes the device a session is created for.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type LoginResult struct {
	Token     string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	User    *models.User
	Session *models.Session
}

// Service implements registration, login and session validation.
type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	cfg    config.AuthConfig
	secret []byte
	oidc   *OIDCVerifier
	cost   int
	now    func() time.Time
}

func NewService(db *gorm.DB, cfg config.AuthConfig, log *zap.Logger) (*Service, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	s := &Service{
		db:     db,
		log:    log.Named("auth"),
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		cost:   bcrypt.DefaultCost,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if cfg.OIDC.Issuer != "" {
		v, err := NewOIDCVerifier(cfg.OIDC)
		if err != nil {
			return nil, err
		}
		s.oidc = v
	}
	return s, nil
}

// CookieName returns the session cookie name.
func (s *Service) CookieName() string { return s.cfg.CookieName }

// Register creates an account. The first account becomes admin and is
// allowed even when registration is closed.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		Email:        normalizeEmail(in.Email),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         models.RoleMember,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users int64
		if err := tx.Model(&models.User{}).Count(&users).Error; err != nil {
			return dbutil.WrapError(err)
		}
		if users == 0 {
			user.Role = models.RoleAdmin
		} else if !s.cfg.AllowRegistration {
			return errors.Forbidden.Explain("registration is closed")
		}
		return s.insertUser(tx, user)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("role", user.Role))
	return user, nil
}

// CreateUser inserts an account with an explicit role.
func (s *Service) CreateUser(ctx context.Context, email, password, name, role string) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, errors.Invalid.Explain("unknown role %q", role)
	}
	if len(password) < 8 {
		return nil, errors.Invalid.Explain("password is too short").WithField("password", "min", "must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{Email: normalizeEmail(email), Name: strings.TrimSpace(name), PasswordHash: string(hash), Role: role}
	if err := s.insertUser(s.db.WithContext(ctx), user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) insertUser(tx *gorm.DB, user *models.User) error {
	err := dbutil.WrapError(tx.Create(user).Error)
	if errors.Is(err, errors.Conflict) {
		return errors.Conflict.Explain("email is already registered").WithField("email", "unique", "is already registered")
	}
	return err
}

// Login checks credentials and opens a session.
func (s *Service) Login(ctx context.Context, in LoginInput, client ClientInfo) (*LoginResult, error) {
	db := s.db.WithContext(ctx)
	user, err := dbutil.FindOne[models.User](db.Where("email = ?", normalizeEmail(in.Email)))
	if errors.Is(err, errors.NotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return nil, errBadCredentials
	}
	if user.TOTPEnabled {
		if in.TOTP == "" {
			return nil, errTOTPRequired
		}
		if !s.validTOTP(in.TOTP, user.TOTPSecret) {
			return nil, errBadTOTP
		}
	}

	now := s.now()
	session := &models.Session{
		UserID:    user.ID,
		TokenID:   newTokenID(),
		IPAddress: client.IP,
		UserAgent: dbutil.Truncate(client.UserAgent, 255),
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return dbutil.WrapError(err)
		}
		return dbutil.WrapError(tx.Model(user).UpdateColumn("last_login_at", now).Error)
	})
	if err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	token, err := s.signToken(user, session, now)
	if err != nil {
		return nil, err
	}
	s.log.Info("user logged in", zap.String("user_id", user.ID.String()), zap.String("session_id", session.ID.String()))
	return &LoginResult{Token: token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

// Authenticate resolves a session token. The session row and the user are
// always loaded; claims alone are never trusted.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, errNoSession
	}
	db := s.db.WithContext(ctx)
	session, err := dbutil.FindOne[models.Session](db.Where("id = ? AND token_id = ?", claims.SessionID, claims.ID))
	if errors.Is(err, errors.NotFound) {
		return nil, errNoSession
	}
	if err != nil {
		return nil, err
	}
	if !session.Active(s.now()) {
		return nil, errNoSession
	}
	user, err := dbutil.FindOne[models.User](db.Where("id = ?", session.UserID))
	if errors.Is(err, errors.NotFound) {
		return nil, errNoSession
	}
	if err != nil {
		return nil, err
	}
	return &Principal{User: user, Session: session}, nil
}

// AuthenticateExternal accepts a bearer token issued by the configured
// identity provider. The token's email must belong to a local account.
func (s *Service) AuthenticateExternal(ctx context.Context, token string) (*Principal, error) {
	if s.oidc == nil {
		return nil, errNoSession
	}
	email, err := s.oidc.Verify(ctx, token)
	if err != nil {
		s.log.Debug("external token rejected", zap.Error(err))
		return nil, errNoSession
	}
	user, err := dbutil.FindOne[models.User](s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)))
	if errors.Is(err, errors.NotFound) {
		return nil, errors.Forbidden.Explain("no account for %s", email)
	}
	if err != nil {
		return nil, err
	}
	return &Principal{User: user}, nil
}

// Logout revokes the session.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		UpdateColumn("revoked_at", s.now()).Error
	return dbutil.WrapError(err)
}

// CleanupSessions deletes expired and revoked sessions.
func (s *Service) CleanupSessions(ctx context.Context) (int64, error) {
	now := s.now()
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", now, now).
		Delete(&models.Session{})
	if res.Error != nil {
		return 0, dbutil.WrapError(res.Error)
	}
	metrics.SessionsCleaned.Add(float64(res.RowsAffected))
	return res.RowsAffected, nil
}

func revokeSessions(tx *gorm.DB, userID uuid.UUID, now time.Time) error {
	return tx.Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		UpdateColumn("revoked_at", now).Error
}

func newTokenID() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
