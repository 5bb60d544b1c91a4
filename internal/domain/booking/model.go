package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frontdesk/frontdesk/internal/domain/shift"
)

// Status is the appointment lifecycle state. StatusLate is accepted from
// storage for legacy rows but never produced by a transition.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusLate       Status = "late"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusInProgress: true, StatusCompleted: true,
	StatusCancelled: true, StatusLate: true,
}

// ParseStatus normalizes a stored status value.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !validStatuses[st] {
		return "", fmt.Errorf("invalid appointment status: %q", s)
	}
	return st, nil
}

// Active statuses count toward shift capacity.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusInProgress || s == StatusLate
}

// Appointment maps to the appointment table. Version guards every status
// write; the doctor binding lives in the doctor_appointment join row.
type Appointment struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Code      string     `db:"code" json:"code"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	ClinicID  uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	ServiceID uuid.UUID  `db:"service_id" json:"service_id"`
	Date      time.Time  `db:"appointment_date" json:"date"`
	Shift     shift.Kind `db:"shift" json:"shift"`
	StartTime *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime   *time.Time `db:"end_time" json:"end_time,omitempty"`
	Status    Status     `db:"status" json:"status"`
	Note      *string    `db:"note" json:"note,omitempty"`
	Version   int        `db:"version" json:"version"`
	CreatedBy *string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// EffectiveShift resolves the appointment's shift, reclassifying legacy rows
// without a tag from the start hour; with no start time either, morning.
func (a *Appointment) EffectiveShift() shift.Kind {
	if kind, err := shift.ParseKind(string(a.Shift)); err == nil {
		return kind
	}
	if a.StartTime != nil {
		return shift.KindForHour(a.StartTime.Hour())
	}
	return shift.KindMorning
}

// SameDay reports whether the appointment is dated on t's calendar day.
func (a *Appointment) SameDay(t time.Time) bool {
	ay, am, ad := a.Date.Date()
	ty, tm, td := t.Date()
	return ay == ty && am == tm && ad == td
}

// DoctorAppointment binds an appointment to the doctor its capacity check
// ran against. An appointment without this row is an orphan and never counts
// toward availability.
type DoctorAppointment struct {
	ID            uuid.UUID `db:"id" json:"id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

const DoctorLinkAssigned = "assigned"

// ShiftAvailability is the computed admission state of one half-day slot.
type ShiftAvailability struct {
	Staffed     bool `json:"staffed"`
	BookedCount int  `json:"booked_count"`
	Capacity    int  `json:"capacity"`
	PastCutoff  bool `json:"past_cutoff"`
	Available   bool `json:"available"`
}

// DayAvailability holds both slots of a doctor's day.
type DayAvailability struct {
	Morning   ShiftAvailability `json:"morning"`
	Afternoon ShiftAvailability `json:"afternoon"`
}

// BookingRequest is the admission input, already parsed at the boundary.
type BookingRequest struct {
	PatientID uuid.UUID
	ClinicID  uuid.UUID
	DoctorID  uuid.UUID
	ServiceID uuid.UUID
	Date      time.Time
	Shift     string
	Note      *string
	CreatedBy string
}
