package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service exposes read-only lookups over the hospital directory. The booking
// flow consults it while admitting a request; handlers expose it for clients
// populating booking forms.
type Service struct {
	patients PatientRepository
	clinics  ClinicRepository
	doctors  DoctorRepository
	services ServiceRepository
}

func NewService(patients PatientRepository, clinics ClinicRepository, doctors DoctorRepository, services ServiceRepository) *Service {
	return &Service{patients: patients, clinics: clinics, doctors: doctors, services: services}
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.clinics.GetByID(ctx, id)
}

func (s *Service) ListClinics(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	return s.clinics.List(ctx, limit, offset)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctorsByClinic(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.ListByClinic(ctx, clinicID, limit, offset)
}

func (s *Service) GetMedicalService(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	return s.services.GetByID(ctx, id)
}

// ListServicesForDoctor resolves the doctor's department and returns the
// services orderable through that department.
func (s *Service) ListServicesForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*MedicalService, int, error) {
	doc, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve doctor %s: %w", doctorID, err)
	}
	return s.services.ListByDepartment(ctx, doc.DepartmentID, limit, offset)
}
