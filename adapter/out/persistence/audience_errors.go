package persistence

import (
	"errors"

	"audience_server/core/service/common"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common persistence errors
var (
	ErrNotFound     = common.ErrNotFound
	ErrDuplicate    = common.ErrDuplicate
	ErrInvalidInput = errors.New("invalid input")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
