package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/layer-3/secatt/core"
	"github.com/layer-3/secatt/ports"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var attendanceColumns = []string{
	"id", "session_id", "student_id", "issuer_id", "subject_label",
	"session_kind", "method", "client_fingerprint", "marked_at",
}

const attendanceSchema = `
CREATE TABLE IF NOT EXISTS attendance_records (
	id                 UUID PRIMARY KEY,
	session_id         TEXT NOT NULL,
	student_id         TEXT NOT NULL,
	issuer_id          TEXT NOT NULL,
	subject_label      TEXT NOT NULL,
	session_kind       TEXT NOT NULL,
	method             TEXT NOT NULL,
	client_fingerprint TEXT NOT NULL DEFAULT '',
	marked_at          TIMESTAMPTZ NOT NULL,
	UNIQUE (session_id, student_id)
)`

// PostgresStore is a PostgreSQL implementation of the AttendanceStore interface
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ ports.AttendanceStore = (*PostgresStore)(nil)

// EnsureSchema creates the attendance table when it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, attendanceSchema); err != nil {
		return fmt.Errorf("creating attendance schema: %w", err)
	}
	return nil
}

// Record inserts an attendance record
func (s *PostgresStore) Record(ctx context.Context, rec core.AttendanceRecord) error {
	query, args, err := psq.Insert("attendance_records").
		Columns(attendanceColumns...).
		Values(
			rec.ID,
			rec.SessionID,
			rec.StudentID,
			rec.IssuerID,
			rec.SubjectLabel,
			string(rec.SessionKind),
			rec.Method,
			rec.ClientFingerprint,
			rec.MarkedAt,
		).
		Suffix("ON CONFLICT (session_id, student_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("inserting attendance record: %w: %w", core.ErrStoreOperationFailed, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w: %w", core.ErrStoreOperationFailed, err)
	}
	if n == 0 {
		return core.ErrAttendanceExists
	}

	return nil
}

// ListBySession returns the records of a session ordered by marking time
func (s *PostgresStore) ListBySession(ctx context.Context, sessionID string) ([]core.AttendanceRecord, error) {
	query, args, err := psq.Select(attendanceColumns...).
		From("attendance_records").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("marked_at ASC", "student_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying attendance records: %w: %w", core.ErrStoreOperationFailed, err)
	}
	defer rows.Close() //nolint:errcheck // close error after full iteration is not actionable

	var out []core.AttendanceRecord
	for rows.Next() {
		var (
			rec  core.AttendanceRecord
			kind string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.StudentID,
			&rec.IssuerID,
			&rec.SubjectLabel,
			&kind,
			&rec.Method,
			&rec.ClientFingerprint,
			&rec.MarkedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning attendance record: %w", err)
		}
		rec.SessionKind = core.SessionKind(kind)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attendance records: %w", err)
	}

	return out, nil
}
