package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/vietddude/votewatch/internal/infra/storage"
)

// sqlState returns the SQLSTATE of a server error from either driver.
func sqlState(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}
	return "", false
}

// IsTransient reports whether err may succeed on retry. Errors that never
// reached the server (network, timeouts, pool exhaustion) are transient.
func IsTransient(err error) bool {
	code, ok := sqlState(err)
	if !ok {
		return true
	}
	switch {
	case len(code) >= 2 && code[:2] == "08": // connection exception
		return true
	case len(code) >= 2 && code[:2] == "53": // insufficient resources
		return true
	case code == "40001", code == "40P01": // serialization failure, deadlock
		return true
	case code == "57P01", code == "57P02", code == "57P03": // server shutting down or starting
		return true
	}
	return false
}

// classify marks server errors that a retry cannot fix with storage.ErrPermanent.
func classify(err error) error {
	if err == nil || IsTransient(err) {
		return err
	}
	return fmt.Errorf("%w: %w", storage.ErrPermanent, err)
}
