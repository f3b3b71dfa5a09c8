package ports

import (
	"context"

	"github.com/layer-3/secatt/core"
)

// AttendanceStore persists validated scans
type AttendanceStore interface {
	// Record stores rec, returning core.ErrAttendanceExists when the student
	// already has a record for the session.
	Record(ctx context.Context, rec core.AttendanceRecord) error
	ListBySession(ctx context.Context, sessionID string) ([]core.AttendanceRecord, error)
}
