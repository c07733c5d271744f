package appointments

import (
	"errors"
	"fmt"
)

// StoreReadError reports that the schedule could not be read, either because
// the backend was unreachable or because it held malformed data.
type StoreReadError struct {
	Backend string
	Err     error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("appointments: read %s store: %v", e.Backend, e.Err)
}

func (e *StoreReadError) Unwrap() error { return e.Err }

// StoreWriteError reports that appending a record failed.
type StoreWriteError struct {
	Backend string
	Err     error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("appointments: append %s store: %v", e.Backend, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// ErrConflict is returned (wrapped in a StoreWriteError) by backends that can
// themselves detect an overlapping or duplicate appointment at commit time.
var ErrConflict = errors.New("appointments: interval already booked")
