package persistence

import (
	"errors"

	"github.com/lib/pq"
)

// Common persistence errors
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

// isUniqueViolation reports a unique-constraint conflict from the driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
