package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// IsConflict reports whether err is a UNIQUE or PRIMARY KEY violation.
func IsConflict(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
