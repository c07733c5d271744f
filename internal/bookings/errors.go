package bookings

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotTaken means the requested interval overlaps an existing appointment.
	ErrSlotTaken = errors.New("bookings: requested time is already booked")
	// ErrMissingPatientName means the request carried no patient name.
	ErrMissingPatientName = errors.New("bookings: patient name is required")
	// ErrOutsideHours means the appointment would not fit the operating window.
	ErrOutsideHours = errors.New("bookings: requested time is outside clinic hours")
)

// FormatError reports a requested start that is not in the canonical
// YYYY-MM-DD HH:MM:SS form.
type FormatError struct {
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("bookings: requested start %q is not YYYY-MM-DD HH:MM:SS: %v", e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
