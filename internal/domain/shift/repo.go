package shift

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ShiftRepository interface {
	Create(ctx context.Context, s *Shift) error
	GetByID(ctx context.Context, id uuid.UUID) (*Shift, error)
	FindByDoctorDateKind(ctx context.Context, doctorID uuid.UUID, date time.Time, kind Kind) (*Shift, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time, limit, offset int) ([]*Shift, int, error)
}

type LeaveRepository interface {
	Create(ctx context.Context, lr *LeaveRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*LeaveRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*LeaveRequest, int, error)
	HasApproved(ctx context.Context, shiftID uuid.UUID) (bool, error)
}
