package booking

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/frontdesk/frontdesk/internal/domain/directory"
	"github.com/frontdesk/frontdesk/internal/domain/shift"
	"github.com/frontdesk/frontdesk/internal/platform/notification"
)

// -- Mock Repositories --

type mockApptRepo struct {
	appts         map[uuid.UUID]*Appointment
	links         map[uuid.UUID]*DoctorAppointment
	seqs          map[string]int
	forceConflict bool
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{
		appts: make(map[uuid.UUID]*Appointment),
		links: make(map[uuid.UUID]*DoctorAppointment),
		seqs:  make(map[string]int),
	}
}

func sameDate(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.Version = 1
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	copied := *a
	m.appts[a.ID] = &copied
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	copied := *a
	return &copied, nil
}

func (m *mockApptRepo) GetByCode(_ context.Context, code string) (*Appointment, error) {
	for _, a := range m.appts {
		if a.Code == code {
			copied := *a
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockApptRepo) UpdateStatus(_ context.Context, id uuid.UUID, expectedVersion int, status Status, note, updatedBy *string) error {
	if m.forceConflict {
		return ErrVersionConflict
	}
	a, ok := m.appts[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	if a.Version != expectedVersion {
		return ErrVersionConflict
	}
	a.Status = status
	if note != nil {
		a.Note = note
	}
	if updatedBy != nil {
		a.UpdatedBy = updatedBy
	}
	a.Version++
	a.UpdatedAt = time.Now()
	return nil
}

func (m *mockApptRepo) CountActive(_ context.Context, doctorID uuid.UUID, date time.Time, kind shift.Kind) (int, error) {
	count := 0
	for id, a := range m.appts {
		link, ok := m.links[id]
		if !ok || link.DoctorID != doctorID {
			continue
		}
		if sameDate(a.Date, date) && a.EffectiveShift() == kind && a.Status.Active() {
			count++
		}
	}
	return count, nil
}

func (m *mockApptRepo) NextCodeSequence(_ context.Context, date time.Time) (int, error) {
	key := date.Format("2006-01-02")
	m.seqs[key]++
	return m.seqs[key], nil
}

func (m *mockApptRepo) AddDoctorLink(_ context.Context, link *DoctorAppointment) error {
	link.ID = uuid.New()
	if link.Status == "" {
		link.Status = DoctorLinkAssigned
	}
	m.links[link.AppointmentID] = link
	return nil
}

func (m *mockApptRepo) GetDoctorLink(_ context.Context, appointmentID uuid.UUID) (*DoctorAppointment, error) {
	link, ok := m.links[appointmentID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return link, nil
}

func (m *mockApptRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockApptRepo) ListByDoctorDate(_ context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error) {
	var result []*Appointment
	for id, a := range m.appts {
		link, ok := m.links[id]
		if ok && link.DoctorID == doctorID && sameDate(a.Date, date) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockApptRepo) ListUnresolvedOn(_ context.Context, date time.Time) ([]*Appointment, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if sameDate(a.Date, date) && (a.Status == StatusScheduled || a.Status == StatusInProgress) {
			copied := *a
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockApptRepo) ListRemindableOn(_ context.Context, date time.Time) ([]*Appointment, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if sameDate(a.Date, date) && a.Status != StatusInProgress && a.Status != StatusCancelled {
			copied := *a
			result = append(result, &copied)
		}
	}
	return result, nil
}

// -- Mock Collaborators --

type mockRegistry struct {
	staffed map[string]bool
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{staffed: make(map[string]bool)}
}

func regKey(doctorID uuid.UUID, date time.Time, kind shift.Kind) string {
	return doctorID.String() + "|" + date.Format("2006-01-02") + "|" + string(kind)
}

func (m *mockRegistry) staff(doctorID uuid.UUID, date time.Time, kind shift.Kind) {
	m.staffed[regKey(doctorID, date, kind)] = true
}

func (m *mockRegistry) IsStaffed(_ context.Context, doctorID uuid.UUID, date time.Time, kind shift.Kind) (bool, error) {
	return m.staffed[regKey(doctorID, date, kind)], nil
}

type mockDirectory struct {
	patients map[uuid.UUID]*directory.Patient
	clinics  map[uuid.UUID]*directory.Clinic
	doctors  map[uuid.UUID]*directory.Doctor
	services map[uuid.UUID]*directory.MedicalService
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		patients: make(map[uuid.UUID]*directory.Patient),
		clinics:  make(map[uuid.UUID]*directory.Clinic),
		doctors:  make(map[uuid.UUID]*directory.Doctor),
		services: make(map[uuid.UUID]*directory.MedicalService),
	}
}

func (m *mockDirectory) GetPatient(_ context.Context, id uuid.UUID) (*directory.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockDirectory) GetClinic(_ context.Context, id uuid.UUID) (*directory.Clinic, error) {
	c, ok := m.clinics[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return c, nil
}

func (m *mockDirectory) GetDoctor(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return d, nil
}

func (m *mockDirectory) GetMedicalService(_ context.Context, id uuid.UUID) (*directory.MedicalService, error) {
	s, ok := m.services[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return s, nil
}

type ledgerEntry struct {
	amount int64
	status string
}

type mockLedger struct {
	entries    map[uuid.UUID]*ledgerEntry
	failCreate bool
}

func newMockLedger() *mockLedger {
	return &mockLedger{entries: make(map[uuid.UUID]*ledgerEntry)}
}

func (m *mockLedger) CreateForAppointment(_ context.Context, appointmentID uuid.UUID, amount int64) error {
	if m.failCreate {
		return fmt.Errorf("ledger unavailable")
	}
	m.entries[appointmentID] = &ledgerEntry{amount: amount, status: "unpaid"}
	return nil
}

func (m *mockLedger) VoidForAppointment(_ context.Context, appointmentID uuid.UUID) error {
	e, ok := m.entries[appointmentID]
	if !ok {
		return fmt.Errorf("not found")
	}
	e.status = "cancelled"
	return nil
}

func (m *mockLedger) ReinstateForAppointment(_ context.Context, appointmentID uuid.UUID) error {
	e, ok := m.entries[appointmentID]
	if !ok {
		return fmt.Errorf("not found")
	}
	e.status = "unpaid"
	return nil
}

type mockNotifier struct {
	confirmations []notification.AppointmentInfo
	reminders     []notification.AppointmentInfo
	failSend      bool
}

func (m *mockNotifier) SendConfirmation(_ context.Context, info notification.AppointmentInfo) error {
	if m.failSend {
		return fmt.Errorf("smtp unavailable")
	}
	m.confirmations = append(m.confirmations, info)
	return nil
}

func (m *mockNotifier) SendReminder(_ context.Context, info notification.AppointmentInfo) error {
	if m.failSend {
		return fmt.Errorf("smtp unavailable")
	}
	m.reminders = append(m.reminders, info)
	return nil
}

// -- Fixture --

type fixture struct {
	svc      *Service
	appts    *mockApptRepo
	registry *mockRegistry
	dir      *mockDirectory
	ledger   *mockLedger
	notifier *mockNotifier

	patient *directory.Patient
	clinic  *directory.Clinic
	doctor  *directory.Doctor
	medsvc  *directory.MedicalService
}

var (
	bookDay = time.Date(2025, 6, 10, 0, 0, 0, 0, time.Local)
	// Default clock: the day before the booking date, mid-morning.
	defaultNow = time.Date(2025, 6, 9, 10, 0, 0, 0, time.Local)
)

func at(day time.Time, hour, min int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, min, 0, 0, day.Location())
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		appts:    newMockApptRepo(),
		registry: newMockRegistry(),
		dir:      newMockDirectory(),
		ledger:   newMockLedger(),
		notifier: &mockNotifier{},
	}

	dept := uuid.New()
	email := "an.nguyen@example.com"
	f.patient = &directory.Patient{ID: uuid.New(), FullName: "Nguyen Van An", Email: &email}
	f.clinic = &directory.Clinic{ID: uuid.New(), Name: "Central Clinic", Status: directory.ClinicStatusAvailable}
	f.doctor = &directory.Doctor{ID: uuid.New(), FullName: "Dr. Tran", ClinicID: f.clinic.ID, DepartmentID: dept}
	f.medsvc = &directory.MedicalService{ID: uuid.New(), Name: "General Checkup", DepartmentID: dept, Price: 200000}

	f.dir.patients[f.patient.ID] = f.patient
	f.dir.clinics[f.clinic.ID] = f.clinic
	f.dir.doctors[f.doctor.ID] = f.doctor
	f.dir.services[f.medsvc.ID] = f.medsvc

	f.registry.staff(f.doctor.ID, bookDay, shift.KindMorning)
	f.registry.staff(f.doctor.ID, bookDay, shift.KindAfternoon)

	f.svc = NewService(f.appts, f.registry, f.dir, f.ledger, f.notifier, zerolog.Nop(), Options{
		Capacity: 10, MorningCutoffHour: 12, AfternoonCutoffHour: 17,
	}).WithClock(func() time.Time { return defaultNow })
	return f
}

func (f *fixture) request(kind string) *BookingRequest {
	return &BookingRequest{
		PatientID: f.patient.ID,
		ClinicID:  f.clinic.ID,
		DoctorID:  f.doctor.ID,
		ServiceID: f.medsvc.ID,
		Date:      bookDay,
		Shift:     kind,
		CreatedBy: "reception-1",
	}
}

// seedAppointment inserts an appointment plus doctor link directly,
// bypassing admission.
func (f *fixture) seedAppointment(t *testing.T, status Status, kind shift.Kind, day time.Time) *Appointment {
	t.Helper()
	ctx := context.Background()
	seq, _ := f.appts.NextCodeSequence(ctx, day)
	a := &Appointment{
		Code:      fmt.Sprintf("AP-%s-%04d", day.Format("20060102"), seq),
		PatientID: f.patient.ID,
		ClinicID:  f.clinic.ID,
		ServiceID: f.medsvc.ID,
		Date:      day,
		Shift:     kind,
		Status:    status,
	}
	if err := f.appts.Create(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.appts.AddDoctorLink(ctx, &DoctorAppointment{DoctorID: f.doctor.ID, AppointmentID: a.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.ledger.entries[a.ID] = &ledgerEntry{amount: f.medsvc.Price, status: "unpaid"}
	return a
}

func wantAdmissionReason(t *testing.T, err error, reason string) {
	t.Helper()
	adm, ok := err.(*AdmissionError)
	if !ok {
		t.Fatalf("expected AdmissionError, got %T: %v", err, err)
	}
	if adm.Reason != reason {
		t.Fatalf("expected reason %s, got %s (%s)", reason, adm.Reason, adm.Message)
	}
}

func wantGuard(t *testing.T, err error, guard string) {
	t.Helper()
	tr, ok := err.(*TransitionError)
	if !ok {
		t.Fatalf("expected TransitionError, got %T: %v", err, err)
	}
	if tr.Guard != guard {
		t.Fatalf("expected guard %s, got %s (%s)", guard, tr.Guard, tr.Message)
	}
}

// -- Admission Tests --

func TestAdmitBooking_Success(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.AdmitBooking(context.Background(), f.request("morning"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", appt.Status)
	}
	if appt.Code != "AP-20250610-0001" {
		t.Errorf("unexpected code %q", appt.Code)
	}
	if appt.Version != 1 {
		t.Errorf("expected version 1, got %d", appt.Version)
	}
	if _, ok := f.appts.links[appt.ID]; !ok {
		t.Error("expected doctor link to be created")
	}
	entry, ok := f.ledger.entries[appt.ID]
	if !ok {
		t.Fatal("expected invoice to be created")
	}
	if entry.amount != f.medsvc.Price || entry.status != "unpaid" {
		t.Errorf("unexpected invoice %+v", entry)
	}
	if len(f.notifier.confirmations) != 1 {
		t.Fatalf("expected 1 confirmation, got %d", len(f.notifier.confirmations))
	}
	if f.notifier.confirmations[0].PatientEmail != "an.nguyen@example.com" {
		t.Errorf("confirmation sent to %q", f.notifier.confirmations[0].PatientEmail)
	}
}

func TestAdmitBooking_CodeSequencePerDay(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.AdmitBooking(context.Background(), f.request("morning"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.AdmitBooking(context.Background(), f.request("afternoon"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Code != "AP-20250610-0001" || second.Code != "AP-20250610-0002" {
		t.Errorf("codes not sequenced: %q then %q", first.Code, second.Code)
	}
}

func TestAdmitBooking_PastDate(t *testing.T) {
	f := newFixture(t)
	req := f.request("morning")
	req.Date = time.Date(2025, 6, 8, 0, 0, 0, 0, time.Local)

	_, err := f.svc.AdmitBooking(context.Background(), req)
	wantAdmissionReason(t, err, ReasonPastDate)
	if len(f.appts.appts) != 0 {
		t.Error("no appointment may be created for a past date")
	}
}

func TestAdmitBooking_InvalidShift(t *testing.T) {
	f := newFixture(t)
	req := f.request("evening")
	_, err := f.svc.AdmitBooking(context.Background(), req)
	wantAdmissionReason(t, err, ReasonInvalidShift)
}

func TestAdmitBooking_EntityNotFound(t *testing.T) {
	f := newFixture(t)

	req := f.request("morning")
	req.PatientID = uuid.New()
	_, err := f.svc.AdmitBooking(context.Background(), req)
	wantAdmissionReason(t, err, ReasonEntityNotFound)

	req = f.request("morning")
	req.ServiceID = uuid.New()
	_, err = f.svc.AdmitBooking(context.Background(), req)
	wantAdmissionReason(t, err, ReasonEntityNotFound)
}

func TestAdmitBooking_ClinicUnavailable(t *testing.T) {
	f := newFixture(t)
	f.clinic.Status = directory.ClinicStatusUnavailable

	_, err := f.svc.AdmitBooking(context.Background(), f.request("morning"))
	wantAdmissionReason(t, err, ReasonEntityNotFound)
}

func TestAdmitBooking_DoctorOutsideClinic(t *testing.T) {
	f := newFixture(t)
	f.doctor.ClinicID = uuid.New()

	_, err := f.svc.AdmitBooking(context.Background(), f.request("morning"))
	wantAdmissionReason(t, err, ReasonEntityNotFound)
}

func TestAdmitBooking_ServiceOutsideDepartment(t *testing.T) {
	f := newFixture(t)
	f.medsvc.DepartmentID = uuid.New()

	_, err := f.svc.AdmitBooking(context.Background(), f.request("morning"))
	wantAdmissionReason(t, err, ReasonEntityNotFound)
}

func TestAdmitBooking_DoctorNotStaffed(t *testing.T) {
	f := newFixture(t)
	req := f.request("morning")
	req.Date = time.Date(2025, 6, 11, 0, 0, 0, 0, time.Local)

	_, err := f.svc.AdmitBooking(context.Background(), req)
	wantAdmissionReason(t, err, ReasonDoctorNotStaffed)
}

func TestAdmitBooking_CapacityScenario(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 9; i++ {
		f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)
	}

	// The 10th admission fills the shift.
	if _, err := f.svc.AdmitBooking(context.Background(), f.request("morning")); err != nil {
		t.Fatalf("10th booking must succeed: %v", err)
	}
	// The 11th is rejected.
	_, err := f.svc.AdmitBooking(context.Background(), f.request("morning"))
	wantAdmissionReason(t, err, ReasonShiftFull)

	// The afternoon shift is unaffected.
	if _, err := f.svc.AdmitBooking(context.Background(), f.request("afternoon")); err != nil {
		t.Fatalf("afternoon booking must succeed: %v", err)
	}
}

func TestAdmitBooking_CancelledDoNotHoldCapacity(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 9; i++ {
		f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)
	}
	f.seedAppointment(t, StatusCancelled, shift.KindMorning, bookDay)
	f.seedAppointment(t, StatusCompleted, shift.KindMorning, bookDay)

	if _, err := f.svc.AdmitBooking(context.Background(), f.request("morning")); err != nil {
		t.Fatalf("cancelled and completed rows must not hold capacity: %v", err)
	}
}

func TestAdmitBooking_Cutoffs(t *testing.T) {
	cases := []struct {
		name  string
		shift string
		now   time.Time
		want  string
	}{
		{"morning before cutoff", "morning", at(bookDay, 11, 59), ""},
		{"morning at cutoff", "morning", at(bookDay, 12, 0), ReasonPastCutoff},
		{"afternoon before cutoff", "afternoon", at(bookDay, 16, 59), ""},
		{"afternoon at cutoff", "afternoon", at(bookDay, 17, 0), ReasonPastCutoff},
		{"future date ignores cutoff", "morning", at(time.Date(2025, 6, 9, 0, 0, 0, 0, time.Local), 20, 0), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.svc.WithClock(func() time.Time { return tc.now })
			_, err := f.svc.AdmitBooking(context.Background(), f.request(tc.shift))
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			wantAdmissionReason(t, err, tc.want)
		})
	}
}

func TestAdmitBooking_NotificationFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.notifier.failSend = true

	appt, err := f.svc.AdmitBooking(context.Background(), f.request("morning"))
	if err != nil {
		t.Fatalf("notification failure must not fail the booking: %v", err)
	}
	if _, ok := f.appts.appts[appt.ID]; !ok {
		t.Error("appointment must still be committed")
	}
}

func TestAdmitBooking_InvoiceFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.ledger.failCreate = true

	// Mirror transactional rollback over the in-memory maps.
	f.svc.inTx = func(ctx context.Context, fn func(context.Context) error) error {
		apptsSnap := make(map[uuid.UUID]*Appointment, len(f.appts.appts))
		for k, v := range f.appts.appts {
			apptsSnap[k] = v
		}
		linksSnap := make(map[uuid.UUID]*DoctorAppointment, len(f.appts.links))
		for k, v := range f.appts.links {
			linksSnap[k] = v
		}
		if err := fn(ctx); err != nil {
			f.appts.appts = apptsSnap
			f.appts.links = linksSnap
			return err
		}
		return nil
	}

	_, err := f.svc.AdmitBooking(context.Background(), f.request("morning"))
	if err == nil {
		t.Fatal("expected admission to fail when the invoice insert fails")
	}
	if len(f.appts.appts) != 0 || len(f.appts.links) != 0 {
		t.Error("no partial aggregate may survive a failed admission")
	}
	if len(f.notifier.confirmations) != 0 {
		t.Error("no confirmation may be sent for a failed admission")
	}
}

// -- Availability Tests --

func TestGetAvailability(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)
	}
	f.seedAppointment(t, StatusCancelled, shift.KindMorning, bookDay)

	day, err := f.svc.GetAvailability(context.Background(), f.doctor.ID, bookDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := day.Morning
	if !m.Staffed || m.BookedCount != 3 || m.Capacity != 10 || m.PastCutoff || !m.Available {
		t.Errorf("unexpected morning availability %+v", m)
	}
	a := day.Afternoon
	if !a.Staffed || a.BookedCount != 0 || !a.Available {
		t.Errorf("unexpected afternoon availability %+v", a)
	}
}

func TestGetAvailability_Unstaffed(t *testing.T) {
	f := newFixture(t)
	otherDay := time.Date(2025, 6, 11, 0, 0, 0, 0, time.Local)

	day, err := f.svc.GetAvailability(context.Background(), f.doctor.ID, otherDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if day.Morning.Staffed || day.Morning.Available {
		t.Errorf("unexpected morning availability %+v", day.Morning)
	}
}

func TestGetAvailability_PastCutoff(t *testing.T) {
	f := newFixture(t)
	f.svc.WithClock(func() time.Time { return at(bookDay, 13, 0) })

	day, err := f.svc.GetAvailability(context.Background(), f.doctor.ID, bookDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !day.Morning.PastCutoff || day.Morning.Available {
		t.Errorf("morning must be past cutoff at 13:00: %+v", day.Morning)
	}
	if day.Afternoon.PastCutoff || !day.Afternoon.Available {
		t.Errorf("afternoon must still be open at 13:00: %+v", day.Afternoon)
	}
}

func TestGetAvailability_FullShift(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)
	}
	day, err := f.svc.GetAvailability(context.Background(), f.doctor.ID, bookDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if day.Morning.Available || day.Morning.BookedCount != 10 {
		t.Errorf("full shift must not be available: %+v", day.Morning)
	}
}

func TestGetAvailability_LegacyShiftTag(t *testing.T) {
	f := newFixture(t)
	start := at(bookDay, 9, 0)
	legacy := f.seedAppointment(t, StatusScheduled, "", bookDay)
	legacy.StartTime = &start

	day, err := f.svc.GetAvailability(context.Background(), f.doctor.ID, bookDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if day.Morning.BookedCount != 1 {
		t.Errorf("legacy row with 09:00 start must count as morning: %+v", day.Morning)
	}
	if day.Afternoon.BookedCount != 0 {
		t.Errorf("legacy row must not count as afternoon: %+v", day.Afternoon)
	}
}

// -- Transition Tests --

func TestTransition_Closure(t *testing.T) {
	events := []string{EventStart, EventPause, EventComplete, EventCancel, EventRestore}
	allowed := map[Status]map[string]Status{
		StatusScheduled:  {EventStart: StatusInProgress, EventCancel: StatusCancelled},
		StatusInProgress: {EventPause: StatusScheduled, EventComplete: StatusCompleted},
		StatusCancelled:  {EventRestore: StatusScheduled},
		StatusCompleted:  {},
		StatusLate:       {},
	}

	for from, legal := range allowed {
		for _, event := range events {
			t.Run(string(from)+"_"+event, func(t *testing.T) {
				f := newFixture(t)
				// Clock inside the shift window so restore guards pass.
				f.svc.WithClock(func() time.Time { return at(bookDay, 9, 0) })
				appt := f.seedAppointment(t, from, shift.KindMorning, bookDay)

				got, err := f.svc.Transition(context.Background(), appt.ID, event, "staff-1", nil)
				want, ok := legal[event]
				if !ok {
					wantGuard(t, err, GuardWrongStatus)
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Status != want {
					t.Errorf("expected %s, got %s", want, got.Status)
				}
			})
		}
	}
}

func TestTransition_InvalidEvent(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)

	_, err := f.svc.Transition(context.Background(), appt.ID, "reschedule", "staff-1", nil)
	wantGuard(t, err, GuardInvalidEvent)
}

func TestTransition_PauseSetsNote(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(t, StatusInProgress, shift.KindMorning, bookDay)

	reason := "patient stepped out"
	got, err := f.svc.Transition(context.Background(), appt.ID, EventPause, "staff-1", &reason)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Note == nil || *got.Note != reason {
		t.Errorf("pause must record the reason, got %v", got.Note)
	}
	stored := f.appts.appts[appt.ID]
	if stored.Note == nil || *stored.Note != reason {
		t.Errorf("stored note = %v", stored.Note)
	}
}

func TestTransition_CancelVoidsInvoice(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)

	reason := "patient request"
	if _, err := f.svc.Transition(context.Background(), appt.ID, EventCancel, "staff-1", &reason); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ledger.entries[appt.ID].status != "cancelled" {
		t.Error("cancel must void the invoice")
	}
}

func TestTransition_Restore(t *testing.T) {
	f := newFixture(t)
	f.svc.WithClock(func() time.Time { return at(bookDay, 9, 0) })
	appt := f.seedAppointment(t, StatusCancelled, shift.KindMorning, bookDay)
	f.ledger.entries[appt.ID].status = "cancelled"

	got, err := f.svc.Transition(context.Background(), appt.ID, EventRestore, "staff-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", got.Status)
	}
	if f.ledger.entries[appt.ID].status != "unpaid" {
		t.Error("restore must reinstate the invoice")
	}
}

func TestTransition_RestoreGuards(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want string
	}{
		{"other day", at(time.Date(2025, 6, 11, 0, 0, 0, 0, time.Local), 9, 0), GuardNotSameDay},
		{"before window", at(bookDay, 6, 59), GuardOutsideShiftWindow},
		{"at window end", at(bookDay, 12, 0), GuardOutsideShiftWindow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.svc.WithClock(func() time.Time { return tc.now })
			appt := f.seedAppointment(t, StatusCancelled, shift.KindMorning, bookDay)

			_, err := f.svc.Transition(context.Background(), appt.ID, EventRestore, "staff-1", nil)
			wantGuard(t, err, tc.want)
		})
	}
}

// Dates scanned from the DATE column arrive as midnight UTC while the
// clock runs in the deployment zone. The restore window must follow the
// clock's day, not the stored date's location.
func TestTransition_RestoreWindowUsesLocalDay(t *testing.T) {
	zone := time.FixedZone("UTC+7", 7*3600)
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	t.Run("inside window", func(t *testing.T) {
		f := newFixture(t)
		f.svc.WithClock(func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, zone) })
		appt := f.seedAppointment(t, StatusCancelled, shift.KindMorning, day)

		got, err := f.svc.Transition(context.Background(), appt.ID, EventRestore, "staff-1", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != StatusScheduled {
			t.Errorf("expected status %s, got %s", StatusScheduled, got.Status)
		}
	})

	t.Run("after window", func(t *testing.T) {
		f := newFixture(t)
		f.svc.WithClock(func() time.Time { return time.Date(2025, 6, 10, 15, 0, 0, 0, zone) })
		appt := f.seedAppointment(t, StatusCancelled, shift.KindMorning, day)

		_, err := f.svc.Transition(context.Background(), appt.ID, EventRestore, "staff-1", nil)
		wantGuard(t, err, GuardOutsideShiftWindow)
	})
}

func TestTransition_VersionConflict(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)
	f.appts.forceConflict = true

	_, err := f.svc.Transition(context.Background(), appt.ID, EventStart, "staff-1", nil)
	wantGuard(t, err, GuardVersionConflict)
}

func TestTransition_BumpsVersion(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)

	got, err := f.svc.Transition(context.Background(), appt.ID, EventStart, "staff-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version != appt.Version+1 {
		t.Errorf("expected version %d, got %d", appt.Version+1, got.Version)
	}
	if f.appts.appts[appt.ID].Version != appt.Version+1 {
		t.Error("stored version not bumped")
	}
}

// -- Sweep Tests --

func TestSweepCancelDue_BeforeClosing(t *testing.T) {
	f := newFixture(t)
	f.svc.WithClock(func() time.Time { return at(bookDay, 16, 59) })
	f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)

	cancelled, err := f.svc.SweepCancelDue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled != 0 {
		t.Errorf("sweep must not act before closing, cancelled %d", cancelled)
	}
}

func TestSweepCancelDue(t *testing.T) {
	f := newFixture(t)
	f.svc.WithClock(func() time.Time { return at(bookDay, 17, 1) })

	scheduled := f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)
	inProgress := f.seedAppointment(t, StatusInProgress, shift.KindAfternoon, bookDay)
	completed := f.seedAppointment(t, StatusCompleted, shift.KindMorning, bookDay)
	otherDay := f.seedAppointment(t, StatusScheduled, shift.KindMorning, time.Date(2025, 6, 11, 0, 0, 0, 0, time.Local))

	cancelled, err := f.svc.SweepCancelDue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled != 2 {
		t.Fatalf("expected 2 cancellations, got %d", cancelled)
	}
	for _, id := range []uuid.UUID{scheduled.ID, inProgress.ID} {
		a := f.appts.appts[id]
		if a.Status != StatusCancelled {
			t.Errorf("appointment %s not cancelled", a.Code)
		}
		if a.Note == nil || !strings.Contains(*a.Note, "2025-06-10T17:01") {
			t.Errorf("cancellation note must carry the timestamp, got %v", a.Note)
		}
		if f.ledger.entries[id].status != "cancelled" {
			t.Errorf("invoice for %s not voided", a.Code)
		}
	}
	if f.appts.appts[completed.ID].Status != StatusCompleted {
		t.Error("completed appointment must be untouched")
	}
	if f.appts.appts[otherDay.ID].Status != StatusScheduled {
		t.Error("other-day appointment must be untouched")
	}
}

func TestSweepCancelDue_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.svc.WithClock(func() time.Time { return at(bookDay, 17, 5) })
	f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)

	first, err := f.svc.SweepCancelDue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.SweepCancelDue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != 1 || second != 0 {
		t.Errorf("expected 1 then 0 cancellations, got %d then %d", first, second)
	}
}

func TestSweepCancelDue_SkipsConcurrentlyModified(t *testing.T) {
	f := newFixture(t)
	f.svc.WithClock(func() time.Time { return at(bookDay, 17, 5) })
	f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)
	f.appts.forceConflict = true

	cancelled, err := f.svc.SweepCancelDue(context.Background())
	if err != nil {
		t.Fatalf("a version conflict must not fail the sweep: %v", err)
	}
	if cancelled != 0 {
		t.Errorf("expected 0 cancellations, got %d", cancelled)
	}
}

// -- Reminder Tests --

func TestSendReminders(t *testing.T) {
	f := newFixture(t)
	f.svc.WithClock(func() time.Time { return at(bookDay, 5, 0) })

	f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)
	f.seedAppointment(t, StatusInProgress, shift.KindMorning, bookDay)
	f.seedAppointment(t, StatusCancelled, shift.KindMorning, bookDay)
	f.seedAppointment(t, StatusScheduled, shift.KindAfternoon, time.Date(2025, 6, 11, 0, 0, 0, 0, time.Local))

	sent, err := f.svc.SendReminders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 reminder, got %d", sent)
	}
	info := f.notifier.reminders[0]
	if info.DoctorName != "Dr. Tran" || info.ClinicName != "Central Clinic" {
		t.Errorf("reminder context not resolved: %+v", info)
	}
}

func TestSendReminders_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	f.svc.WithClock(func() time.Time { return at(bookDay, 5, 0) })

	broken := f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)
	delete(f.appts.links, broken.ID)
	f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)

	sent, err := f.svc.SendReminders(context.Background())
	if err != nil {
		t.Fatalf("per-appointment failures must not stop the scan: %v", err)
	}
	if sent != 1 {
		t.Errorf("expected 1 reminder, got %d", sent)
	}
}

// -- Views --

func TestGetDoctorDay(t *testing.T) {
	f := newFixture(t)
	f.seedAppointment(t, StatusScheduled, shift.KindMorning, bookDay)
	f.seedAppointment(t, StatusScheduled, shift.KindAfternoon, bookDay)
	f.seedAppointment(t, StatusScheduled, shift.KindAfternoon, bookDay)

	sched, err := f.svc.GetDoctorDay(context.Background(), f.doctor.ID, bookDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sched.Morning) != 1 || len(sched.Afternoon) != 2 {
		t.Errorf("expected 1 morning and 2 afternoon, got %d and %d", len(sched.Morning), len(sched.Afternoon))
	}
}
