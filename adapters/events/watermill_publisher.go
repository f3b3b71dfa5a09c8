package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/secatt/core"
	"github.com/layer-3/secatt/ports"
)

const (
	TopicSessionOpened    = "secatt.session.opened"
	TopicAttendanceMarked = "secatt.attendance.marked"
	TopicSessionClosed    = "secatt.session.closed"
)

// SessionEvent is published when a session is opened or closed
type SessionEvent struct {
	SessionID    string    `json:"session_id"`
	IssuerID     string    `json:"issuer_id"`
	Subject      string    `json:"subject"`
	SessionKind  string    `json:"session_kind"`
	ScannedCount int       `json:"scanned_count"`
	IsOpen       bool      `json:"is_open"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AttendanceEvent is published for every recorded scan
type AttendanceEvent struct {
	SessionID    string    `json:"session_id"`
	IssuerID     string    `json:"issuer_id"`
	StudentID    string    `json:"student_id"`
	Subject      string    `json:"subject"`
	Method       string    `json:"method"`
	MarkedAt     time.Time `json:"marked_at"`
	TotalScanned int       `json:"total_scanned"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
	}
}

// PublishSessionOpened publishes a session opened event
func (p *WatermillPublisher) PublishSessionOpened(ctx context.Context, snap core.Snapshot) error {
	return p.publish(ctx, TopicSessionOpened, sessionEvent(snap))
}

// PublishSessionClosed publishes a session closed event
func (p *WatermillPublisher) PublishSessionClosed(ctx context.Context, snap core.Snapshot) error {
	return p.publish(ctx, TopicSessionClosed, sessionEvent(snap))
}

// PublishAttendanceMarked publishes an attendance event
func (p *WatermillPublisher) PublishAttendanceMarked(ctx context.Context, rec core.AttendanceRecord, scannedCount int) error {
	return p.publish(ctx, TopicAttendanceMarked, AttendanceEvent{
		SessionID:    rec.SessionID,
		IssuerID:     rec.IssuerID,
		StudentID:    rec.StudentID,
		Subject:      rec.SubjectLabel,
		Method:       rec.Method,
		MarkedAt:     rec.MarkedAt,
		TotalScanned: scannedCount,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func sessionEvent(snap core.Snapshot) SessionEvent {
	return SessionEvent{
		SessionID:    snap.SessionID,
		IssuerID:     snap.IssuerID,
		Subject:      snap.SubjectLabel,
		SessionKind:  string(snap.SessionKind),
		ScannedCount: snap.ScannedCount,
		IsOpen:       snap.IsOpen,
		ExpiresAt:    snap.ExpiresAt,
	}
}
