package directory

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type ClinicRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	List(ctx context.Context, limit, offset int) ([]*Clinic, int, error)
}

type DoctorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListByClinic(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Doctor, int, error)
}

type ServiceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalService, error)
	ListByDepartment(ctx context.Context, departmentID uuid.UUID, limit, offset int) ([]*MedicalService, int, error)
}
