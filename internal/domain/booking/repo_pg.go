package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frontdesk/frontdesk/internal/domain/shift"
	"github.com/frontdesk/frontdesk/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, code, patient_id, clinic_id, service_id, appointment_date, shift,
	start_time, end_time, status, note, version, created_by, updated_by, created_at, updated_at`

// apptColsA qualifies the same columns for queries joining doctor_appointment.
const apptColsA = `a.id, a.code, a.patient_id, a.clinic_id, a.service_id, a.appointment_date, a.shift,
	a.start_time, a.end_time, a.status, a.note, a.version, a.created_by, a.updated_by, a.created_at, a.updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.Code, &a.PatientID, &a.ClinicID, &a.ServiceID, &a.Date, &a.Shift,
		&a.StartTime, &a.EndTime, &a.Status, &a.Note, &a.Version,
		&a.CreatedBy, &a.UpdatedBy, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.Version = 1
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, code, patient_id, clinic_id, service_id, appointment_date,
			shift, start_time, end_time, status, note, version, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, a.Code, a.PatientID, a.ClinicID, a.ServiceID, a.Date,
		a.Shift, a.StartTime, a.EndTime, a.Status, a.Note, a.Version, a.CreatedBy)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) GetByCode(ctx context.Context, code string) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE code = $1`, code))
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, status Status, note, updatedBy *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment
		SET status = $3, note = COALESCE($4, note), updated_by = COALESCE($5, updated_by),
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		id, expectedVersion, status, note, updatedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Legacy rows carry an empty shift tag; they are classified by start hour
// the same way EffectiveShift does in memory.
const shiftMatch = `(
	LOWER(a.shift) = $3
	OR (a.shift = '' AND $3 = CASE WHEN a.start_time IS NULL OR EXTRACT(HOUR FROM a.start_time) < 12
		THEN 'morning' ELSE 'afternoon' END)
)`

func (r *appointmentRepoPG) CountActive(ctx context.Context, doctorID uuid.UUID, date time.Time, kind shift.Kind) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointment a
		JOIN doctor_appointment da ON da.appointment_id = a.id
		WHERE da.doctor_id = $1
		  AND a.appointment_date = $2::date
		  AND `+shiftMatch+`
		  AND a.status IN ('scheduled', 'in_progress', 'late')`,
		doctorID, date, string(kind)).Scan(&count)
	return count, err
}

func (r *appointmentRepoPG) NextCodeSequence(ctx context.Context, date time.Time) (int, error) {
	var seq int
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment_day_seq (seq_date, value)
		VALUES ($1::date, 1)
		ON CONFLICT (seq_date) DO UPDATE SET value = appointment_day_seq.value + 1
		RETURNING value`, date).Scan(&seq)
	return seq, err
}

func (r *appointmentRepoPG) AddDoctorLink(ctx context.Context, link *DoctorAppointment) error {
	link.ID = uuid.New()
	if link.Status == "" {
		link.Status = DoctorLinkAssigned
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_appointment (id, doctor_id, appointment_id, status)
		VALUES ($1,$2,$3,$4)`,
		link.ID, link.DoctorID, link.AppointmentID, link.Status)
	return err
}

func (r *appointmentRepoPG) GetDoctorLink(ctx context.Context, appointmentID uuid.UUID) (*DoctorAppointment, error) {
	var link DoctorAppointment
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, doctor_id, appointment_id, status, created_at
		FROM doctor_appointment WHERE appointment_id = $1`, appointmentID).
		Scan(&link.ID, &link.DoctorID, &link.AppointmentID, &link.Status, &link.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE patient_id = $1 ORDER BY appointment_date DESC, created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *appointmentRepoPG) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptColsA+` FROM appointment a
		JOIN doctor_appointment da ON da.appointment_id = a.id
		WHERE da.doctor_id = $1 AND a.appointment_date = $2::date
		ORDER BY a.created_at ASC`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *appointmentRepoPG) ListUnresolvedOn(ctx context.Context, date time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE appointment_date = $1::date AND status IN ('scheduled', 'in_progress')
		ORDER BY created_at ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *appointmentRepoPG) ListRemindableOn(ctx context.Context, date time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE appointment_date = $1::date AND status NOT IN ('in_progress', 'cancelled')
		ORDER BY created_at ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *appointmentRepoPG) collect(rows pgx.Rows) ([]*Appointment, error) {
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
