package objectstore

import (
	"errors"
	"fmt"
)

// ErrNotExist is returned when a key has no object.
var ErrNotExist = errors.New("object does not exist")

// ErrRangeNotSatisfiable is returned when a requested range lies outside
// the object.
type ErrRangeNotSatisfiable struct {
	Range Range
}

func (e ErrRangeNotSatisfiable) Error() string {
	if e.Range.End != nil {
		return fmt.Sprintf("range not satisfiable: %d-%d", e.Range.Start, *e.Range.End)
	}
	return fmt.Sprintf("range not satisfiable: %d-", e.Range.Start)
}

// IsRangeNotSatisfiable reports whether err is an ErrRangeNotSatisfiable.
func IsRangeNotSatisfiable(err error) bool {
	var e ErrRangeNotSatisfiable
	return errors.As(err, &e)
}
