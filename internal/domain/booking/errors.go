package booking

import (
	"errors"
	"fmt"
)

// Admission rejection reasons. Stable codes surfaced verbatim to clients.
const (
	ReasonPastDate         = "past_date"
	ReasonInvalidShift     = "invalid_shift"
	ReasonEntityNotFound   = "entity_not_found"
	ReasonDoctorNotStaffed = "doctor_not_staffed"
	ReasonShiftFull        = "shift_full"
	ReasonPastCutoff       = "past_cutoff"
)

// AdmissionError rejects a booking request with a stable reason code.
type AdmissionError struct {
	Reason  string
	Message string
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("booking rejected (%s): %s", e.Reason, e.Message)
}

func admissionErr(reason, format string, args ...interface{}) *AdmissionError {
	return &AdmissionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Transition guard names. Stable codes surfaced verbatim to clients.
const (
	GuardInvalidEvent       = "invalid_event"
	GuardWrongStatus        = "wrong_status"
	GuardNotSameDay         = "not_same_day"
	GuardOutsideShiftWindow = "outside_shift_window"
	GuardVersionConflict    = "version_conflict"
)

// TransitionError rejects a lifecycle transition, naming the violated guard.
type TransitionError struct {
	Guard   string
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition rejected (%s): %s", e.Guard, e.Message)
}

func transitionErr(guard, format string, args ...interface{}) *TransitionError {
	return &TransitionError{Guard: guard, Message: fmt.Sprintf(format, args...)}
}

// ErrVersionConflict is returned by repositories when an optimistic status
// write matches no row at the expected version.
var ErrVersionConflict = errors.New("appointment version conflict")
