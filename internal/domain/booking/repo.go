package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/frontdesk/frontdesk/internal/domain/directory"
	"github.com/frontdesk/frontdesk/internal/domain/shift"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByCode(ctx context.Context, code string) (*Appointment, error)
	// UpdateStatus bumps the row version; ErrVersionConflict when the
	// expected version no longer matches.
	UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, status Status, note, updatedBy *string) error
	// CountActive counts appointments holding capacity for the slot,
	// joined through doctor_appointment. Legacy rows without a shift tag
	// are classified by start hour.
	CountActive(ctx context.Context, doctorID uuid.UUID, date time.Time, kind shift.Kind) (int, error)
	// NextCodeSequence atomically claims the next per-day sequence number
	// for appointment codes.
	NextCodeSequence(ctx context.Context, date time.Time) (int, error)
	AddDoctorLink(ctx context.Context, link *DoctorAppointment) error
	GetDoctorLink(ctx context.Context, appointmentID uuid.UUID) (*DoctorAppointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error)
	// ListUnresolvedOn returns scheduled and in-progress appointments for
	// the date; the auto-cancel sweep's working set.
	ListUnresolvedOn(ctx context.Context, date time.Time) ([]*Appointment, error)
	// ListRemindableOn returns the date's appointments that are neither
	// in progress nor cancelled; the reminder sweep's working set.
	ListRemindableOn(ctx context.Context, date time.Time) ([]*Appointment, error)
}

// StaffingRegistry answers whether a doctor works a given half-day slot.
// Satisfied by shift.Service.
type StaffingRegistry interface {
	IsStaffed(ctx context.Context, doctorID uuid.UUID, date time.Time, kind shift.Kind) (bool, error)
}

// Directory resolves the parties named in a booking request.
// Satisfied by directory.Service.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*directory.Patient, error)
	GetClinic(ctx context.Context, id uuid.UUID) (*directory.Clinic, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
	GetMedicalService(ctx context.Context, id uuid.UUID) (*directory.MedicalService, error)
}

// InvoiceLedger records charges alongside admissions and voids them on
// cancellation. Satisfied by billing.Service.
type InvoiceLedger interface {
	CreateForAppointment(ctx context.Context, appointmentID uuid.UUID, amount int64) error
	VoidForAppointment(ctx context.Context, appointmentID uuid.UUID) error
	ReinstateForAppointment(ctx context.Context, appointmentID uuid.UUID) error
}
