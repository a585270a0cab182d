package database

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the repositories react to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique violation, optionally
// restricted to one of the given constraint or index names.
func IsUniqueViolation(err error, constraints ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != codeUniqueViolation {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, name := range constraints {
		if pqErr.Constraint == name {
			return true
		}
	}
	return false
}

// IsForeignKeyViolation reports whether err is a foreign key violation,
// optionally restricted to one of the given constraint names.
func IsForeignKeyViolation(err error, constraints ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != codeForeignKeyViolation {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, name := range constraints {
		if pqErr.Constraint == name {
			return true
		}
	}
	return false
}
