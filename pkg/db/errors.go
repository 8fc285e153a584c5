package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports a unique constraint failure from Postgres (by
// SQLSTATE) or sqlite (by message). A non-empty constraint narrows the match.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.PG(err); ok {
		return pg.Code == pgUniqueViolation && (constraint == "" || pg.Constraint == constraint)
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraint == "" || strings.Contains(msg, constraint)
}
