package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
)

var postgresTracer = otel.Tracer("dental.internal.appointments.postgres")

// exclusion_violation, raised by the appointments_no_overlap constraint.
const pgExclusionViolation = "23P01"

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps the schedule in the appointments table. The table
// carries an exclusion constraint so overlapping inserts fail at commit.
type PostgresStore struct {
	db pgxQuerier
}

var _ Store = (*PostgresStore)(nil)

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

func (s *PostgresStore) ReadAll(ctx context.Context) ([]Record, error) {
	ctx, span := postgresTracer.Start(ctx, "appointments.postgres.read_all")
	defer span.End()

	query := `
		SELECT start_at, end_at, patient_name, contact, reason, created_at
		FROM appointments
		ORDER BY start_at, id
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, &StoreReadError{Backend: "postgres", Err: err}
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Start, &rec.End, &rec.PatientName, &rec.Contact, &rec.Reason, &rec.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, &StoreReadError{Backend: "postgres", Err: fmt.Errorf("scan appointment: %w", err)}
		}
		rec.Start = wallClock(rec.Start)
		rec.End = wallClock(rec.End)
		rec.CreatedAt = wallClock(rec.CreatedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, &StoreReadError{Backend: "postgres", Err: err}
	}
	return records, nil
}

func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	ctx, span := postgresTracer.Start(ctx, "appointments.postgres.append")
	defer span.End()

	query := `
		INSERT INTO appointments (start_at, end_at, patient_name, contact, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.Exec(ctx, query, rec.Start, rec.End, rec.PatientName, rec.Contact, rec.Reason, rec.CreatedAt)
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
			return &StoreWriteError{Backend: "postgres", Err: ErrConflict}
		}
		return &StoreWriteError{Backend: "postgres", Err: err}
	}
	return nil
}

// wallClock re-anchors a TIMESTAMP (without zone) value, which pgx decodes
// as UTC, to the same wall clock in the server's local zone.
func wallClock(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
}
