package integration

import (
	"context"
	"testing"
	"time"

	"github.com/frontdesk/frontdesk/internal/domain/shift"
)

func TestGenerateMonth(t *testing.T) {
	ctx := context.Background()
	fix := seedClinicFixture(t, ctx, globalDB.Pool)
	svcs := newServices(t)

	next := time.Now().AddDate(0, 1, 0)
	created, err := svcs.Shift.GenerateMonth(ctx, fix.DoctorID, next.Year(), next.Month())
	if err != nil {
		t.Fatalf("generate month: %v", err)
	}
	daysInMonth := time.Date(next.Year(), next.Month()+1, 0, 0, 0, 0, 0, time.Local).Day()
	if created != daysInMonth*2 {
		t.Errorf("expected %d shifts, got %d", daysInMonth*2, created)
	}

	// A rerun finds every slot already present.
	created, err = svcs.Shift.GenerateMonth(ctx, fix.DoctorID, next.Year(), next.Month())
	if err != nil {
		t.Fatalf("regenerate month: %v", err)
	}
	if created != 0 {
		t.Errorf("expected 0 new shifts on rerun, got %d", created)
	}
}

func TestApprovedLeaveExcusesShift(t *testing.T) {
	ctx := context.Background()
	fix := seedClinicFixture(t, ctx, globalDB.Pool)
	svcs := newServices(t)
	date := tomorrow()

	sh := &shift.Shift{DoctorID: fix.DoctorID, Date: date, Kind: shift.KindMorning}
	if err := svcs.Shift.CreateShift(ctx, sh); err != nil {
		t.Fatalf("create shift: %v", err)
	}

	staffed, err := svcs.Shift.IsStaffed(ctx, fix.DoctorID, date, shift.KindMorning)
	if err != nil {
		t.Fatalf("is staffed: %v", err)
	}
	if !staffed {
		t.Fatal("expected shift to staff the slot")
	}

	lr := &shift.LeaveRequest{DoctorID: fix.DoctorID, ShiftID: sh.ID}
	if err := svcs.Shift.FileLeave(ctx, lr); err != nil {
		t.Fatalf("file leave: %v", err)
	}

	// Pending leave does not excuse the shift.
	staffed, err = svcs.Shift.IsStaffed(ctx, fix.DoctorID, date, shift.KindMorning)
	if err != nil {
		t.Fatalf("is staffed: %v", err)
	}
	if !staffed {
		t.Fatal("pending leave must not excuse the shift")
	}

	if err := svcs.Shift.ApproveLeave(ctx, lr.ID); err != nil {
		t.Fatalf("approve leave: %v", err)
	}
	staffed, err = svcs.Shift.IsStaffed(ctx, fix.DoctorID, date, shift.KindMorning)
	if err != nil {
		t.Fatalf("is staffed: %v", err)
	}
	if staffed {
		t.Fatal("approved leave must excuse the shift")
	}
}
