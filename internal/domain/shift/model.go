package shift

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the half-day a shift covers. Values are stored lowercase;
// parsing is case-insensitive so legacy rows with mixed casing still match.
type Kind string

const (
	KindMorning   Kind = "morning"
	KindAfternoon Kind = "afternoon"
)

// ParseKind normalizes a shift tag. Anything other than morning or afternoon
// is rejected.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindMorning):
		return KindMorning, nil
	case string(KindAfternoon):
		return KindAfternoon, nil
	default:
		return "", fmt.Errorf("invalid shift kind: %q", s)
	}
}

// KindForHour classifies a start hour the way legacy rows without a shift tag
// were classified: before noon is morning, everything else afternoon.
func KindForHour(hour int) Kind {
	if hour < 12 {
		return KindMorning
	}
	return KindAfternoon
}

// Default working windows. The morning shift ends at its booking cutoff;
// the afternoon shift ends at closing time.
const (
	MorningStartHour   = 7
	MorningEndHour     = 12
	AfternoonStartHour = 13
	AfternoonEndHour   = 17
)

// WindowOn returns the shift's working window on the given date, in the
// date's location.
func (k Kind) WindowOn(date time.Time) (start, end time.Time) {
	y, m, d := date.Date()
	loc := date.Location()
	if k == KindMorning {
		return time.Date(y, m, d, MorningStartHour, 0, 0, 0, loc),
			time.Date(y, m, d, MorningEndHour, 0, 0, 0, loc)
	}
	return time.Date(y, m, d, AfternoonStartHour, 0, 0, 0, loc),
		time.Date(y, m, d, AfternoonEndHour, 0, 0, 0, loc)
}

// Shift maps to the shift table. At most one row exists per
// (doctor_id, shift_date, kind), enforced by a unique index.
type Shift struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date      time.Time `db:"shift_date" json:"date"`
	Kind      Kind      `db:"kind" json:"kind"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Leave request statuses.
const (
	LeaveStatusPending  = "pending"
	LeaveStatusApproved = "approved"
	LeaveStatusRejected = "rejected"
)

// LeaveRequest maps to the shift_leave_request table. An approved request
// excuses the referenced shift from staffing.
type LeaveRequest struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	ShiftID     uuid.UUID `db:"shift_id" json:"shift_id"`
	RequestType string    `db:"request_type" json:"request_type"`
	Reason      *string   `db:"reason" json:"reason,omitempty"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
