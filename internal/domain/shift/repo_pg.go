package shift

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frontdesk/frontdesk/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Shift Repository ===========

type shiftRepoPG struct{ pool *pgxpool.Pool }

func NewShiftRepoPG(pool *pgxpool.Pool) ShiftRepository { return &shiftRepoPG{pool: pool} }

func (r *shiftRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const shiftCols = `id, doctor_id, shift_date, kind, start_time, end_time, created_at, updated_at`

func (r *shiftRepoPG) scanShift(row pgx.Row) (*Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.DoctorID, &s.Date, &s.Kind, &s.StartTime, &s.EndTime,
		&s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *shiftRepoPG) Create(ctx context.Context, s *Shift) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO shift (id, doctor_id, shift_date, kind, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.DoctorID, s.Date, s.Kind, s.StartTime, s.EndTime)
	return err
}

func (r *shiftRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Shift, error) {
	return r.scanShift(r.conn(ctx).QueryRow(ctx, `SELECT `+shiftCols+` FROM shift WHERE id = $1`, id))
}

func (r *shiftRepoPG) FindByDoctorDateKind(ctx context.Context, doctorID uuid.UUID, date time.Time, kind Kind) (*Shift, error) {
	return r.scanShift(r.conn(ctx).QueryRow(ctx, `
		SELECT `+shiftCols+` FROM shift
		WHERE doctor_id = $1 AND shift_date = $2::date AND kind = $3`,
		doctorID, date, kind))
}

func (r *shiftRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM shift WHERE id = $1`, id)
	return err
}

func (r *shiftRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time, limit, offset int) ([]*Shift, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM shift
		WHERE doctor_id = $1 AND shift_date >= $2::date AND shift_date <= $3::date`,
		doctorID, from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+shiftCols+` FROM shift
		WHERE doctor_id = $1 AND shift_date >= $2::date AND shift_date <= $3::date
		ORDER BY shift_date ASC, kind ASC LIMIT $4 OFFSET $5`,
		doctorID, from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Shift
	for rows.Next() {
		s, err := r.scanShift(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

// =========== Leave Request Repository ===========

type leaveRepoPG struct{ pool *pgxpool.Pool }

func NewLeaveRepoPG(pool *pgxpool.Pool) LeaveRepository { return &leaveRepoPG{pool: pool} }

func (r *leaveRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const leaveCols = `id, doctor_id, shift_id, request_type, reason, status, created_at, updated_at`

func (r *leaveRepoPG) scanLeave(row pgx.Row) (*LeaveRequest, error) {
	var lr LeaveRequest
	err := row.Scan(&lr.ID, &lr.DoctorID, &lr.ShiftID, &lr.RequestType, &lr.Reason, &lr.Status,
		&lr.CreatedAt, &lr.UpdatedAt)
	return &lr, err
}

func (r *leaveRepoPG) Create(ctx context.Context, lr *LeaveRequest) error {
	lr.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO shift_leave_request (id, doctor_id, shift_id, request_type, reason, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		lr.ID, lr.DoctorID, lr.ShiftID, lr.RequestType, lr.Reason, lr.Status)
	return err
}

func (r *leaveRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LeaveRequest, error) {
	return r.scanLeave(r.conn(ctx).QueryRow(ctx, `SELECT `+leaveCols+` FROM shift_leave_request WHERE id = $1`, id))
}

func (r *leaveRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE shift_leave_request SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	return err
}

func (r *leaveRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*LeaveRequest, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM shift_leave_request WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+leaveCols+` FROM shift_leave_request
		WHERE doctor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*LeaveRequest
	for rows.Next() {
		lr, err := r.scanLeave(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, lr)
	}
	return items, total, nil
}

func (r *leaveRepoPG) HasApproved(ctx context.Context, shiftID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM shift_leave_request WHERE shift_id = $1 AND status = $2
		)`, shiftID, LeaveStatusApproved).Scan(&exists)
	return exists, err
}
