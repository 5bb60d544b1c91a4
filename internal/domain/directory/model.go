package directory

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. The engine only reads patient rows;
// profile management happens elsewhere.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	FullName    string     `db:"full_name" json:"full_name"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ContactEmail returns the patient's email or an empty string.
func (p *Patient) ContactEmail() string {
	if p.Email == nil {
		return ""
	}
	return *p.Email
}

// Clinic maps to the clinic table. Only clinics whose status is
// ClinicStatusAvailable accept new bookings.
type Clinic struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	Address   *string   `db:"address" json:"address,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

const (
	ClinicStatusAvailable   = "available"
	ClinicStatusUnavailable = "unavailable"
)

// AcceptsBookings reports whether the clinic is open for new appointments.
func (c *Clinic) AcceptsBookings() bool { return c.Status == ClinicStatusAvailable }

// Doctor maps to the doctor table. ClinicID ties the doctor to the clinic
// the capacity checks run against; DepartmentID resolves orderable services.
type Doctor struct {
	ID           uuid.UUID `db:"id" json:"id"`
	FullName     string    `db:"full_name" json:"full_name"`
	ClinicID     uuid.UUID `db:"clinic_id" json:"clinic_id"`
	DepartmentID uuid.UUID `db:"department_id" json:"department_id"`
	Email        *string   `db:"email" json:"email,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// MedicalService maps to the medical_service table. Price is the amount the
// invoice ledger charges when an appointment for this service is admitted.
type MedicalService struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	DepartmentID uuid.UUID `db:"department_id" json:"department_id"`
	Price        int64     `db:"price" json:"price"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
