package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/doctor-portal/internal/calendar"
)

// pgExclusionViolation is the SQLSTATE raised by the no-overlap constraint.
const pgExclusionViolation = "23P01"

type pgxQuerier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists appointments in Postgres. The appointments table
// carries an exclusion constraint over (doctor_id, appointment_date,
// int4range(start_minute, end_minute)) for booked rows, so overlaps are
// rejected even across service instances. Insert also takes a transaction
// scoped advisory lock on the doctor/date key before re-checking.
type PostgresStore struct {
	db       pgxQuerier
	onInsert InsertHook
}

// TxExecer is the part of the booking transaction an InsertHook may write through.
type TxExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertHook runs inside the booking transaction after the row is written
// and before commit. An error rolls the booking back.
type InsertHook func(ctx context.Context, tx TxExecer, apt Appointment) error

// WithInsertHook registers h to run inside every booking transaction.
func (s *PostgresStore) WithInsertHook(h InsertHook) *PostgresStore {
	s.onInsert = h
	return s
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithQuerier(db pgxQuerier) *PostgresStore {
	if db == nil {
		panic("appointments: querier required")
	}
	return &PostgresStore{db: db}
}

const appointmentColumns = `id::text, patient_id, doctor_id, speciality, appointment_date, start_minute, end_minute, status, created_at, cancelled_at`

func (s *PostgresStore) ListByDoctorAndDate(ctx context.Context, doctorID string, date calendar.Date) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2 AND status = 'booked'
		ORDER BY start_minute
	`
	return s.list(ctx, query, doctorID, date.Time(time.UTC))
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date, start_minute
	`
	return s.list(ctx, query, patientID)
}

func (s *PostgresStore) ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY appointment_date, start_minute
	`
	return s.list(ctx, query, doctorID)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	apt, err := scanAppointment(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("appointments: get %s: %w", id, err)
	}
	return apt, nil
}

func (s *PostgresStore) Insert(ctx context.Context, apt Appointment) (Appointment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	day := apt.Date.Time(time.UTC)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, LockKey(apt.DoctorID, apt.Date)); err != nil {
		return Appointment{}, fmt.Errorf("appointments: advisory lock: %w", err)
	}

	var overlaps bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND appointment_date = $2
			  AND status = 'booked'
			  AND start_minute < $4
			  AND end_minute > $3
		)`, apt.DoctorID, day, int(apt.StartTime), int(apt.EndTime)).Scan(&overlaps)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: overlap check: %w", err)
	}
	if overlaps {
		return Appointment{}, fmt.Errorf("%w: %s on %s", ErrSlotConflict, apt.Interval(), apt.Date)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, speciality, appointment_date, start_minute, end_minute, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		apt.ID, apt.PatientID, apt.DoctorID, apt.Speciality, day, int(apt.StartTime), int(apt.EndTime), string(apt.Status), apt.CreatedAt,
	).Scan(&apt.CreatedAt)
	if err != nil {
		return Appointment{}, translatePgError("insert", err)
	}
	if s.onInsert != nil {
		if err := s.onInsert(ctx, tx, apt); err != nil {
			return Appointment{}, fmt.Errorf("appointments: insert hook: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Appointment{}, translatePgError("commit", err)
	}
	committed = true
	return apt, nil
}

func (s *PostgresStore) Cancel(ctx context.Context, id string, at time.Time) (Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'cancelled', cancelled_at = COALESCE(cancelled_at, $2)
		WHERE id = $1
		RETURNING ` + appointmentColumns
	apt, err := scanAppointment(s.db.QueryRow(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("appointments: cancel %s: %w", id, err)
	}
	return apt, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: query: %w", err)
	}
	defer rows.Close()

	out := make([]Appointment, 0)
	for rows.Next() {
		apt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, apt)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var (
		apt         Appointment
		day         time.Time
		start, end  int
		status      string
		cancelledAt pgtype.Timestamptz
	)
	if err := row.Scan(&apt.ID, &apt.PatientID, &apt.DoctorID, &apt.Speciality, &day, &start, &end, &status, &apt.CreatedAt, &cancelledAt); err != nil {
		return Appointment{}, err
	}
	apt.Date = calendar.DateOf(day)
	apt.StartTime = calendar.Clock(start)
	apt.EndTime = calendar.Clock(end)
	apt.Status = Status(status)
	if cancelledAt.Valid {
		t := cancelledAt.Time
		apt.CancelledAt = &t
	}
	return apt, nil
}

func translatePgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return fmt.Errorf("%w: %s rejected by %s", ErrSlotConflict, op, pgErr.ConstraintName)
	}
	return fmt.Errorf("appointments: %s: %w", op, err)
}
