package appointments

import (
	"errors"
	"fmt"

	"github.com/wolfman30/doctor-portal/internal/calendar"
)

var (
	// ErrInvalidRequest is returned when required booking fields are missing.
	ErrInvalidRequest = errors.New("appointments: invalid request")

	// ErrInvalidSlot is returned when a time is malformed or its end crosses midnight.
	ErrInvalidSlot = calendar.ErrInvalidSlot

	// ErrOutOfHours is returned when a slot is outside the doctor's working hours.
	ErrOutOfHours = errors.New("appointments: slot outside working hours")

	// ErrSlotConflict is returned when a slot overlaps an existing appointment.
	ErrSlotConflict = errors.New("appointments: slot conflicts with an existing appointment")

	// ErrBusy is returned when the doctor/date lock could not be acquired in time.
	ErrBusy = errors.New("appointments: schedule is busy, retry later")

	// ErrNotFound is returned when an appointment does not exist.
	ErrNotFound = errors.New("appointments: appointment not found")

	// ErrNotParticipant is returned when a user acts on someone else's appointment.
	ErrNotParticipant = errors.New("appointments: user is not a participant")
)

// ErrorKind classifies scheduling failures so callers can branch without
// matching error strings.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindInvalidRequest     ErrorKind = "invalid_request"
	KindInvalidSlot        ErrorKind = "invalid_slot"
	KindOutOfHours         ErrorKind = "out_of_hours"
	KindSlotConflict       ErrorKind = "slot_conflict"
	KindBusy               ErrorKind = "busy"
	KindNotFound           ErrorKind = "not_found"
	KindNotParticipant     ErrorKind = "not_participant"
	KindNotificationFailed ErrorKind = "notification_failed"
	KindInternal           ErrorKind = "internal"
)

// KindOf maps err onto an ErrorKind. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrInvalidSlot):
		return KindInvalidSlot
	case errors.Is(err, ErrOutOfHours):
		return KindOutOfHours
	case errors.Is(err, ErrSlotConflict):
		return KindSlotConflict
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotParticipant):
		return KindNotParticipant
	default:
		return KindInternal
	}
}

// Retryable reports whether the caller should retry with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrBusy)
}

func invalidRequest(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
}
