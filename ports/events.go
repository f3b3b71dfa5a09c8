package ports

import (
	"context"

	"github.com/layer-3/secatt/core"
)

// EventPublisher notifies dashboards and other instances about session activity
type EventPublisher interface {
	PublishSessionOpened(ctx context.Context, snap core.Snapshot) error
	PublishAttendanceMarked(ctx context.Context, rec core.AttendanceRecord, scannedCount int) error
	PublishSessionClosed(ctx context.Context, snap core.Snapshot) error
}
