package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Service owns shift administration and the staffing registry consulted by
// the booking flow.
type Service struct {
	shifts ShiftRepository
	leaves LeaveRepository
}

func NewService(shifts ShiftRepository, leaves LeaveRepository) *Service {
	return &Service{shifts: shifts, leaves: leaves}
}

// -- Shift administration --

func (s *Service) CreateShift(ctx context.Context, sh *Shift) error {
	if sh.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if sh.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	kind, err := ParseKind(string(sh.Kind))
	if err != nil {
		return err
	}
	sh.Kind = kind
	if sh.StartTime.IsZero() || sh.EndTime.IsZero() {
		sh.StartTime, sh.EndTime = kind.WindowOn(sh.Date)
	}
	if _, err := s.shifts.FindByDoctorDateKind(ctx, sh.DoctorID, sh.Date, kind); err == nil {
		return fmt.Errorf("shift already exists for doctor %s on %s (%s)",
			sh.DoctorID, sh.Date.Format("2006-01-02"), kind)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return s.shifts.Create(ctx, sh)
}

// GenerateMonth creates morning and afternoon shifts for every day of the
// given month, skipping (doctor, date, kind) combinations that already
// exist. It returns the number of shifts created.
func (s *Service) GenerateMonth(ctx context.Context, doctorID uuid.UUID, year int, month time.Month) (int, error) {
	if doctorID == uuid.Nil {
		return 0, fmt.Errorf("doctor_id is required")
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	created := 0
	for day := first; day.Month() == month; day = day.AddDate(0, 0, 1) {
		for _, kind := range []Kind{KindMorning, KindAfternoon} {
			_, err := s.shifts.FindByDoctorDateKind(ctx, doctorID, day, kind)
			if err == nil {
				continue
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return created, err
			}
			start, end := kind.WindowOn(day)
			sh := &Shift{DoctorID: doctorID, Date: day, Kind: kind, StartTime: start, EndTime: end}
			if err := s.shifts.Create(ctx, sh); err != nil {
				return created, fmt.Errorf("create %s shift on %s: %w", kind, day.Format("2006-01-02"), err)
			}
			created++
		}
	}
	return created, nil
}

func (s *Service) GetShift(ctx context.Context, id uuid.UUID) (*Shift, error) {
	return s.shifts.GetByID(ctx, id)
}

func (s *Service) DeleteShift(ctx context.Context, id uuid.UUID) error {
	return s.shifts.Delete(ctx, id)
}

func (s *Service) ListShifts(ctx context.Context, doctorID uuid.UUID, from, to time.Time, limit, offset int) ([]*Shift, int, error) {
	return s.shifts.ListByDoctor(ctx, doctorID, from, to, limit, offset)
}

// -- Staffing registry --

// IsStaffed reports whether the doctor works the given shift: a shift row
// exists and no approved leave request excuses it.
func (s *Service) IsStaffed(ctx context.Context, doctorID uuid.UUID, date time.Time, kind Kind) (bool, error) {
	sh, err := s.shifts.FindByDoctorDateKind(ctx, doctorID, date, kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	excused, err := s.leaves.HasApproved(ctx, sh.ID)
	if err != nil {
		return false, err
	}
	return !excused, nil
}

// -- Leave requests --

var validLeaveStatuses = map[string]bool{
	LeaveStatusPending: true, LeaveStatusApproved: true, LeaveStatusRejected: true,
}

func (s *Service) FileLeave(ctx context.Context, lr *LeaveRequest) error {
	if lr.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if lr.ShiftID == uuid.Nil {
		return fmt.Errorf("shift_id is required")
	}
	sh, err := s.shifts.GetByID(ctx, lr.ShiftID)
	if err != nil {
		return fmt.Errorf("shift not found: %w", err)
	}
	if sh.DoctorID != lr.DoctorID {
		return fmt.Errorf("shift %s does not belong to doctor %s", lr.ShiftID, lr.DoctorID)
	}
	if lr.RequestType == "" {
		lr.RequestType = "leave"
	}
	lr.Status = LeaveStatusPending
	return s.leaves.Create(ctx, lr)
}

// ApproveLeave marks the request approved. Approving an already approved
// request is a no-op; a rejected request cannot be approved.
func (s *Service) ApproveLeave(ctx context.Context, id uuid.UUID) error {
	return s.resolveLeave(ctx, id, LeaveStatusApproved)
}

// RejectLeave marks the request rejected. Rejecting an already rejected
// request is a no-op; an approved request cannot be rejected.
func (s *Service) RejectLeave(ctx context.Context, id uuid.UUID) error {
	return s.resolveLeave(ctx, id, LeaveStatusRejected)
}

func (s *Service) resolveLeave(ctx context.Context, id uuid.UUID, status string) error {
	if !validLeaveStatuses[status] {
		return fmt.Errorf("invalid leave status: %s", status)
	}
	lr, err := s.leaves.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("leave request not found: %w", err)
	}
	if lr.Status == status {
		return nil
	}
	if lr.Status != LeaveStatusPending {
		return fmt.Errorf("leave request already %s", lr.Status)
	}
	return s.leaves.UpdateStatus(ctx, id, status)
}

func (s *Service) GetLeave(ctx context.Context, id uuid.UUID) (*LeaveRequest, error) {
	return s.leaves.GetByID(ctx, id)
}

func (s *Service) ListLeaves(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*LeaveRequest, int, error) {
	return s.leaves.ListByDoctor(ctx, doctorID, limit, offset)
}
