package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("repository: duplicate key")

const (
	pqUniqueViolation           = "23505"
	pqInvalidTextRepresentation = "22P02"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// isMalformedID reports a value Postgres could not parse for its column type, such as a non-UUID id.
// No row can match such an id, so callers treat it as sql.ErrNoRows.
func isMalformedID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRepresentation
}

// missingRow reports whether err means the addressed row does not exist.
func missingRow(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || isMalformedID(err)
}

// likePattern escapes LIKE wildcards in user input and wraps it for substring matching.
func likePattern(raw string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(raw) + "%"
}
