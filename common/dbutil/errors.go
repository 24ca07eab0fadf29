package dbutil

import (
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/pkg/errors"
)

const DuplicateKeyErrorCode = "23505"

// WrapError wraps a gorm error.
func WrapError(err error) error {
	var pgErr *pgconn.PgError
	var appErr *errors.Error

	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Conflict.Explain("duplication of key").Wrap(err)
	case errors.As(err, &pgErr) && pgErr.Code == DuplicateKeyErrorCode:
		return errors.Conflict.Explain("duplication of key").Wrap(err)
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return errors.Conflict.Explain("duplication of key").Wrap(err)
	}

	return err
}
