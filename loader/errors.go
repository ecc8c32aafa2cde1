package loader

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PersistenceError is the only fatal error class: any storage-layer
// failure aborts and rolls back the whole batch.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	var pqErr *pq.Error
	if errors.As(e.Err, &pqErr) {
		return fmt.Sprintf("persistence failure during %s: %s (%s)", e.Op, pqErr.Message, pqErr.Code)
	}
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
