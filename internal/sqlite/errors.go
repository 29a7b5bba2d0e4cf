package sqlite

import "strings"

// sqliteConstraintMessage reports whether err's driver-level message names
// the given SQLite constraint class, since modernc.org/sqlite surfaces
// constraint failures as plain error text rather than a typed error.
func sqliteConstraintMessage(err error, class string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), class)
}

func isForeignKeyViolation(err error) bool {
	return sqliteConstraintMessage(err, "FOREIGN KEY constraint failed")
}
