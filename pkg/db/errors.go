package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is set, the violation must reference that constraint. The
// sqlite driver used in tests only reports text, so messages are matched too.
func IsUniqueViolation(err error, constraintName string) bool {
	return isViolation(err, pgUniqueViolation, constraintName, "duplicate key value", "UNIQUE constraint failed")
}

// IsCheckViolation reports whether err breaks a CHECK constraint such as the
// non-negative product quantity guard.
func IsCheckViolation(err error, constraintName string) bool {
	return isViolation(err, pgCheckViolation, constraintName, "violates check constraint", "CHECK constraint failed")
}

func isViolation(err error, sqlState, constraintName string, markers ...string) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.PostgresDetails(err); ok {
		return pg.Code == sqlState && (constraintName == "" || pg.Constraint == constraintName)
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
