package booking

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/frontdesk/frontdesk/internal/domain/shift"
	"github.com/frontdesk/frontdesk/internal/platform/db"
	"github.com/frontdesk/frontdesk/internal/platform/notification"
)

// Options carries the engine knobs shared by availability and admission.
// Capacity is the single authoritative per-shift limit.
type Options struct {
	Capacity            int
	MorningCutoffHour   int
	AfternoonCutoffHour int
}

// Service is the slot-admission engine: availability computation, booking
// admission, and the appointment lifecycle.
type Service struct {
	appts    AppointmentRepository
	registry StaffingRegistry
	dir      Directory
	invoices InvoiceLedger
	notifier notification.Notifier
	log      zerolog.Logger

	opts Options

	now      func() time.Time
	inTx     func(ctx context.Context, fn func(ctx context.Context) error) error
	lockSlot func(ctx context.Context, key int64) error
}

func NewService(appts AppointmentRepository, registry StaffingRegistry, dir Directory,
	invoices InvoiceLedger, notifier notification.Notifier, log zerolog.Logger, opts Options) *Service {
	if opts.Capacity <= 0 {
		opts.Capacity = 10
	}
	if opts.MorningCutoffHour <= 0 {
		opts.MorningCutoffHour = 12
	}
	if opts.AfternoonCutoffHour <= 0 {
		opts.AfternoonCutoffHour = 17
	}
	return &Service{
		appts:    appts,
		registry: registry,
		dir:      dir,
		invoices: invoices,
		notifier: notifier,
		log:      log,
		opts:     opts,
		now:      time.Now,
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
		lockSlot: func(context.Context, int64) error { return nil },
	}
}

// WithPool routes multi-write operations through a single transaction with a
// per-slot advisory lock, closing the count-then-insert race between
// concurrent admissions.
func (s *Service) WithPool(pool *pgxpool.Pool) *Service {
	s.inTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	s.lockSlot = db.AdvisoryLock
	return s
}

// WithClock overrides the time source; cutoff and window guards read it.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func slotKey(doctorID uuid.UUID, date time.Time, kind shift.Kind) int64 {
	h := fnv.New64a()
	h.Write([]byte(doctorID.String()))
	h.Write([]byte(date.Format("2006-01-02")))
	h.Write([]byte(kind))
	return int64(h.Sum64())
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *Service) cutoffFor(kind shift.Kind, date time.Time) time.Time {
	hour := s.opts.MorningCutoffHour
	if kind == shift.KindAfternoon {
		hour = s.opts.AfternoonCutoffHour
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, date.Location())
}

// pastCutoff applies only to same-day bookings.
func (s *Service) pastCutoff(kind shift.Kind, date, now time.Time) bool {
	if !dateOnly(date).Equal(dateOnly(now)) {
		return false
	}
	return !now.Before(s.cutoffFor(kind, now))
}

// -- Availability --

// GetAvailability computes both half-day slots for a doctor's date. Pure
// read; safe to poll.
func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID, date time.Time) (*DayAvailability, error) {
	now := s.now()
	day := DayAvailability{}
	for _, slot := range []struct {
		kind shift.Kind
		out  *ShiftAvailability
	}{
		{shift.KindMorning, &day.Morning},
		{shift.KindAfternoon, &day.Afternoon},
	} {
		staffed, err := s.registry.IsStaffed(ctx, doctorID, date, slot.kind)
		if err != nil {
			return nil, fmt.Errorf("staffing lookup: %w", err)
		}
		booked, err := s.appts.CountActive(ctx, doctorID, date, slot.kind)
		if err != nil {
			return nil, fmt.Errorf("booked count: %w", err)
		}
		past := s.pastCutoff(slot.kind, date, now)
		*slot.out = ShiftAvailability{
			Staffed:     staffed,
			BookedCount: booked,
			Capacity:    s.opts.Capacity,
			PastCutoff:  past,
			Available:   staffed && booked < s.opts.Capacity && !past,
		}
	}
	return &day, nil
}

// -- Admission --

// AdmitBooking validates a booking request end to end and, when admitted,
// creates the appointment aggregate (appointment, doctor link, invoice) in
// one transaction. The confirmation email is sent after commit, best-effort.
func (s *Service) AdmitBooking(ctx context.Context, req *BookingRequest) (*Appointment, error) {
	now := s.now()

	if dateOnly(req.Date).Before(dateOnly(now)) {
		return nil, admissionErr(ReasonPastDate, "appointment date %s is in the past", req.Date.Format("2006-01-02"))
	}

	kind, err := shift.ParseKind(req.Shift)
	if err != nil {
		return nil, admissionErr(ReasonInvalidShift, "shift must be morning or afternoon, got %q", req.Shift)
	}

	patient, err := s.dir.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, admissionErr(ReasonEntityNotFound, "patient %s not found", req.PatientID)
	}
	clinic, err := s.dir.GetClinic(ctx, req.ClinicID)
	if err != nil {
		return nil, admissionErr(ReasonEntityNotFound, "clinic %s not found", req.ClinicID)
	}
	if !clinic.AcceptsBookings() {
		return nil, admissionErr(ReasonEntityNotFound, "clinic %s is not accepting bookings", req.ClinicID)
	}
	doctor, err := s.dir.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, admissionErr(ReasonEntityNotFound, "doctor %s not found", req.DoctorID)
	}
	if doctor.ClinicID != clinic.ID {
		return nil, admissionErr(ReasonEntityNotFound, "doctor %s does not work at clinic %s", req.DoctorID, req.ClinicID)
	}
	svc, err := s.dir.GetMedicalService(ctx, req.ServiceID)
	if err != nil {
		return nil, admissionErr(ReasonEntityNotFound, "service %s not found", req.ServiceID)
	}
	if svc.DepartmentID != doctor.DepartmentID {
		return nil, admissionErr(ReasonEntityNotFound, "service %s is not offered by doctor %s's department", req.ServiceID, req.DoctorID)
	}

	staffed, err := s.registry.IsStaffed(ctx, req.DoctorID, req.Date, kind)
	if err != nil {
		return nil, fmt.Errorf("staffing lookup: %w", err)
	}
	if !staffed {
		return nil, admissionErr(ReasonDoctorNotStaffed, "doctor %s has no %s shift on %s", req.DoctorID, kind, req.Date.Format("2006-01-02"))
	}

	var appt *Appointment
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.lockSlot(ctx, slotKey(req.DoctorID, req.Date, kind)); err != nil {
			return err
		}

		booked, err := s.appts.CountActive(ctx, req.DoctorID, req.Date, kind)
		if err != nil {
			return err
		}
		if booked >= s.opts.Capacity {
			return admissionErr(ReasonShiftFull, "%s shift on %s is full (%d/%d)", kind, req.Date.Format("2006-01-02"), booked, s.opts.Capacity)
		}
		if s.pastCutoff(kind, req.Date, now) {
			return admissionErr(ReasonPastCutoff, "%s shift bookings close at %02d:00", kind, s.cutoffFor(kind, now).Hour())
		}

		seq, err := s.appts.NextCodeSequence(ctx, req.Date)
		if err != nil {
			return fmt.Errorf("code sequence: %w", err)
		}
		createdBy := req.CreatedBy
		appt = &Appointment{
			Code:      fmt.Sprintf("AP-%s-%04d", req.Date.Format("20060102"), seq),
			PatientID: patient.ID,
			ClinicID:  clinic.ID,
			ServiceID: svc.ID,
			Date:      dateOnly(req.Date),
			Shift:     kind,
			Status:    StatusScheduled,
			Note:      req.Note,
		}
		if createdBy != "" {
			appt.CreatedBy = &createdBy
		}
		if err := s.appts.Create(ctx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		if err := s.appts.AddDoctorLink(ctx, &DoctorAppointment{
			DoctorID:      doctor.ID,
			AppointmentID: appt.ID,
			Status:        DoctorLinkAssigned,
		}); err != nil {
			return fmt.Errorf("link doctor: %w", err)
		}
		if err := s.invoices.CreateForAppointment(ctx, appt.ID, svc.Price); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sendErr := s.notifier.SendConfirmation(ctx, notification.AppointmentInfo{
		Code:         appt.Code,
		Date:         appt.Date.Format("2006-01-02"),
		Shift:        string(kind),
		PatientName:  patient.FullName,
		PatientEmail: patient.ContactEmail(),
		DoctorName:   doctor.FullName,
		ClinicName:   clinic.Name,
	}); sendErr != nil {
		s.log.Warn().Err(sendErr).Str("appointment", appt.Code).Msg("confirmation email failed")
	}

	return appt, nil
}

// -- Lifecycle transitions --

// Transition events.
const (
	EventStart    = "start"
	EventPause    = "pause"
	EventComplete = "complete"
	EventCancel   = "cancel"
	EventRestore  = "restore"
)

// Transition applies a lifecycle event to an appointment under the guards of
// the state machine. Status writes are version-checked; a concurrent writer
// surfaces as a version_conflict guard.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, event, actor string, reason *string) (*Appointment, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("appointment %s: %w", id, err)
	}

	var target Status
	var note *string
	switch event {
	case EventStart:
		if appt.Status != StatusScheduled {
			return nil, transitionErr(GuardWrongStatus, "cannot start a %s appointment", appt.Status)
		}
		target = StatusInProgress
	case EventPause:
		if appt.Status != StatusInProgress {
			return nil, transitionErr(GuardWrongStatus, "cannot pause a %s appointment", appt.Status)
		}
		target = StatusScheduled
		note = reason
	case EventComplete:
		if appt.Status != StatusInProgress {
			return nil, transitionErr(GuardWrongStatus, "cannot complete a %s appointment", appt.Status)
		}
		target = StatusCompleted
	case EventCancel:
		if appt.Status != StatusScheduled {
			return nil, transitionErr(GuardWrongStatus, "cannot cancel a %s appointment", appt.Status)
		}
		target = StatusCancelled
		note = reason
	case EventRestore:
		if appt.Status != StatusCancelled {
			return nil, transitionErr(GuardWrongStatus, "cannot restore a %s appointment", appt.Status)
		}
		now := s.now()
		if !appt.SameDay(now) {
			return nil, transitionErr(GuardNotSameDay, "appointment %s is not for today", appt.Code)
		}
		// Anchor the window to the clock's calendar day; the stored
		// date may carry a different location than the clock.
		start, end := appt.EffectiveShift().WindowOn(dateOnly(now))
		if now.Before(start) || !now.Before(end) {
			return nil, transitionErr(GuardOutsideShiftWindow, "restore only allowed between %02d:00 and %02d:00", start.Hour(), end.Hour())
		}
		target = StatusScheduled
	default:
		return nil, transitionErr(GuardInvalidEvent, "unknown event %q", event)
	}

	var updatedBy *string
	if actor != "" {
		updatedBy = &actor
	}

	update := func(ctx context.Context) error {
		return s.appts.UpdateStatus(ctx, appt.ID, appt.Version, target, note, updatedBy)
	}
	switch {
	case target == StatusCancelled:
		err = s.inTx(ctx, func(ctx context.Context) error {
			if err := update(ctx); err != nil {
				return err
			}
			return s.invoices.VoidForAppointment(ctx, appt.ID)
		})
	case event == EventRestore:
		err = s.inTx(ctx, func(ctx context.Context) error {
			if err := update(ctx); err != nil {
				return err
			}
			return s.invoices.ReinstateForAppointment(ctx, appt.ID)
		})
	default:
		err = update(ctx)
	}
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, transitionErr(GuardVersionConflict, "appointment %s was modified concurrently", appt.Code)
		}
		return nil, err
	}

	appt.Status = target
	appt.Version++
	if note != nil {
		appt.Note = note
	}
	appt.UpdatedBy = updatedBy
	return appt, nil
}

// -- Sweeper entry points --

// SweepCancelDue force-cancels today's unresolved appointments once the
// closing cutoff has passed. Returns the number cancelled. Rows modified
// concurrently are skipped; the next tick or the other writer settles them.
func (s *Service) SweepCancelDue(ctx context.Context) (int, error) {
	now := s.now()
	closing := s.cutoffFor(shift.KindAfternoon, now)
	if now.Before(closing) {
		return 0, nil
	}

	due, err := s.appts.ListUnresolvedOn(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list unresolved: %w", err)
	}

	cancelled := 0
	for _, appt := range due {
		note := fmt.Sprintf("automatically cancelled at %s: unresolved at end of day", now.Format(time.RFC3339))
		system := "system"
		err := s.inTx(ctx, func(ctx context.Context) error {
			if err := s.appts.UpdateStatus(ctx, appt.ID, appt.Version, StatusCancelled, &note, &system); err != nil {
				return err
			}
			return s.invoices.VoidForAppointment(ctx, appt.ID)
		})
		if errors.Is(err, ErrVersionConflict) {
			s.log.Debug().Str("appointment", appt.Code).Msg("skipped sweep cancel, modified concurrently")
			continue
		}
		if err != nil {
			return cancelled, fmt.Errorf("sweep cancel %s: %w", appt.Code, err)
		}
		cancelled++
	}
	return cancelled, nil
}

// SendReminders emails one reminder per qualifying appointment of the
// current day. Per-appointment failures are logged and skipped. Returns the
// number of reminders sent.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.appts.ListRemindableOn(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list remindable: %w", err)
	}

	sent := 0
	for _, appt := range due {
		info, err := s.reminderInfo(ctx, appt)
		if err != nil {
			s.log.Warn().Err(err).Str("appointment", appt.Code).Msg("reminder context lookup failed")
			continue
		}
		if err := s.notifier.SendReminder(ctx, info); err != nil {
			s.log.Warn().Err(err).Str("appointment", appt.Code).Msg("reminder email failed")
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Service) reminderInfo(ctx context.Context, appt *Appointment) (notification.AppointmentInfo, error) {
	patient, err := s.dir.GetPatient(ctx, appt.PatientID)
	if err != nil {
		return notification.AppointmentInfo{}, fmt.Errorf("patient: %w", err)
	}
	clinic, err := s.dir.GetClinic(ctx, appt.ClinicID)
	if err != nil {
		return notification.AppointmentInfo{}, fmt.Errorf("clinic: %w", err)
	}
	link, err := s.appts.GetDoctorLink(ctx, appt.ID)
	if err != nil {
		return notification.AppointmentInfo{}, fmt.Errorf("doctor link: %w", err)
	}
	doctor, err := s.dir.GetDoctor(ctx, link.DoctorID)
	if err != nil {
		return notification.AppointmentInfo{}, fmt.Errorf("doctor: %w", err)
	}
	return notification.AppointmentInfo{
		Code:         appt.Code,
		Date:         appt.Date.Format("2006-01-02"),
		Shift:        string(appt.EffectiveShift()),
		PatientName:  patient.FullName,
		PatientEmail: patient.ContactEmail(),
		DoctorName:   doctor.FullName,
		ClinicName:   clinic.Name,
	}, nil
}

// -- Reads --

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

func (s *Service) GetAppointmentByCode(ctx context.Context, code string) (*Appointment, error) {
	return s.appts.GetByCode(ctx, code)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.ListByPatient(ctx, patientID, limit, offset)
}

// DoctorDaySchedule is a doctor's day split by half-day slot.
type DoctorDaySchedule struct {
	Morning   []*Appointment `json:"morning"`
	Afternoon []*Appointment `json:"afternoon"`
}

// GetDoctorDay lists a doctor's appointments for a date, split by shift.
func (s *Service) GetDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) (*DoctorDaySchedule, error) {
	appts, err := s.appts.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	sched := &DoctorDaySchedule{}
	for _, a := range appts {
		if a.EffectiveShift() == shift.KindMorning {
			sched.Morning = append(sched.Morning, a)
		} else {
			sched.Afternoon = append(sched.Afternoon, a)
		}
	}
	return sched, nil
}

// ListUnresolvedToday lists today's appointments the auto-cancel sweep would
// target.
func (s *Service) ListUnresolvedToday(ctx context.Context) ([]*Appointment, error) {
	return s.appts.ListUnresolvedOn(ctx, s.now())
}
