package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// appointmentCols selects from "a" (appointments) joined to "d" (the doctor).
const appointmentCols = `a.id, a.doctor_id, d.name, a.slot_date, a.slot_time, a.status,
	a.patient_id, a.patient_name, a.patient_phone, a.created_at, a.updated_at`

const appointmentFrom = ` FROM appointments a JOIN users d ON d.id = a.doctor_id`

const appointmentOrder = ` ORDER BY a.slot_date, a.slot_time, a.created_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.DoctorName, &a.Date, &a.Time, &a.Status,
		&a.PatientID, &a.PatientName, &a.PatientPhone, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO appointments (id, doctor_id, slot_date, slot_time, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		)
		SELECT d.name, ins.created_at, ins.updated_at FROM ins JOIN users d ON d.id = ins.doctor_id`,
		a.ID, a.DoctorID, a.Date, a.Time, a.Status,
	).Scan(&a.DoctorName, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("appointment create: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+appointmentCols+appointmentFrom+` WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	return a, err
}

func (r *appointmentRepoPG) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	items, err := r.list(ctx, `SELECT `+appointmentCols+appointmentFrom+` WHERE a.doctor_id = $1`+appointmentOrder, doctorID)
	if err != nil {
		return nil, fmt.Errorf("appointment list by doctor: %w", err)
	}
	return items, nil
}

func (r *appointmentRepoPG) ListAvailable(ctx context.Context, doctorID *uuid.UUID) ([]*Appointment, error) {
	items, err := r.list(ctx, `SELECT `+appointmentCols+appointmentFrom+`
		WHERE a.status = 'AVAILABLE' AND ($1::uuid IS NULL OR a.doctor_id = $1)`+appointmentOrder, doctorID)
	if err != nil {
		return nil, fmt.Errorf("appointment list available: %w", err)
	}
	return items, nil
}

func (r *appointmentRepoPG) FirstDoctorWithAvailable(ctx context.Context) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT doctor_id FROM appointments
		WHERE status = 'AVAILABLE'
		ORDER BY slot_date, slot_time, created_at
		LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("first doctor with available: %w", err)
	}
	return id, true, nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id, doctorID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1 AND doctor_id = $2`, id, doctorID)
	if err != nil {
		return 0, fmt.Errorf("appointment delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *appointmentRepoPG) DeleteAllByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE doctor_id = $1`, doctorID)
	if err != nil {
		return 0, fmt.Errorf("appointment delete all: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *appointmentRepoPG) updateReturning(ctx context.Context, update string, args ...interface{}) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`WITH a AS (`+update+` RETURNING *) SELECT `+appointmentCols+` FROM a JOIN users d ON d.id = a.doctor_id`,
		args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoMatch
	}
	return a, err
}

func (r *appointmentRepoPG) Book(ctx context.Context, id, patientID uuid.UUID, name, phone string) (*Appointment, error) {
	a, err := r.updateReturning(ctx, `
		UPDATE appointments
		SET status = 'PENDING', patient_id = $2, patient_name = $3, patient_phone = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'AVAILABLE'`,
		id, patientID, name, phone)
	if err != nil && !errors.Is(err, ErrNoMatch) {
		return nil, fmt.Errorf("appointment book: %w", err)
	}
	return a, err
}

func (r *appointmentRepoPG) Resolve(ctx context.Context, id, doctorID uuid.UUID, status string) (*Appointment, error) {
	a, err := r.updateReturning(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND doctor_id = $2 AND patient_id IS NOT NULL`,
		id, doctorID, status)
	if err != nil && !errors.Is(err, ErrNoMatch) {
		return nil, fmt.Errorf("appointment resolve: %w", err)
	}
	return a, err
}
