package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/common/dbutil"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
)

// TOTPSetup is returned when two factor setup starts.
type TOTPSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

var totpOpts = totp.ValidateOpts{Period: 30, Skew: 1, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1}

func (s *Service) validTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, s.now(), totpOpts)
	return err == nil && ok
}

// SetupTOTP generates a pending secret. It becomes active after EnableTOTP
// verifies a code generated from it.
func (s *Service) SetupTOTP(ctx context.Context, userID uuid.UUID) (*TOTPSetup, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, errors.Conflict.Explain("two factor authentication is already enabled")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.Issuer,
		AccountName: user.Email,
		SecretSize:  20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).UpdateColumn("totp_pending", key.Secret()).Error; err != nil {
		return nil, dbutil.WrapError(err)
	}
	return &TOTPSetup{Secret: key.Secret(), URL: key.URL()}, nil
}

// EnableTOTP activates the pending secret when code matches it.
func (s *Service) EnableTOTP(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPPending == "" {
		return errors.Invalid.Explain("two factor setup was not started")
	}
	if !s.validTOTP(code, user.TOTPPending) {
		return errors.Invalid.Explain("invalid two factor code").WithField("code", "invalid", "does not match")
	}
	err = s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"totp_secret":  user.TOTPPending,
		"totp_pending": "",
		"totp_enabled": true,
	}).Error
	if err != nil {
		return dbutil.WrapError(err)
	}
	s.log.Info("TOTP enabled", zap.String("user_id", userID.String()))
	return nil
}

// DisableTOTP turns two factor authentication off and revokes every session
// of the user.
func (s *Service) DisableTOTP(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return errors.Unauthorized.Explain("invalid password")
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(user).Updates(map[string]interface{}{
			"totp_secret":  "",
			"totp_pending": "",
			"totp_enabled": false,
		}).Error
		if err != nil {
			return dbutil.WrapError(err)
		}
		return dbutil.WrapError(revokeSessions(tx, userID, s.now()))
	})
	if err != nil {
		return err
	}
	s.log.Info("TOTP disabled", zap.String("user_id", userID.String()))
	return nil
}

func (s *Service) user(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := dbutil.FindOne[models.User](s.db.WithContext(ctx).Where("id = ?", id))
	if errors.Is(err, errors.NotFound) {
		return nil, errors.NotFound.Explain("user %s not found", id)
	}
	return user, err
}
