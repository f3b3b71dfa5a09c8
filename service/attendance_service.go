package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/layer-3/secatt/core"
	"github.com/layer-3/secatt/ports"
	"github.com/sirupsen/logrus"
)

// MarkRequest is a student check-in attempt
type MarkRequest struct {
	Payload             string
	StudentID           string
	ClientFingerprint   string
	LocationFingerprint *string
	Credential          *core.Credential
}

// SessionAttendance combines the live session state with persisted records
type SessionAttendance struct {
	Snapshot core.Snapshot
	Records  []core.AttendanceRecord
}

// AttendanceService turns validated scans into attendance records
type AttendanceService struct {
	qr       *QRService
	store    ports.AttendanceStore
	eventPub ports.EventPublisher
	verifier ports.IdentityVerifier
	clock    ports.Clock
	log      logrus.FieldLogger
}

// NewAttendanceService creates a new attendance service. verifier may be nil,
// in which case credentials are ignored.
func NewAttendanceService(
	qr *QRService,
	store ports.AttendanceStore,
	eventPub ports.EventPublisher,
	verifier ports.IdentityVerifier,
	clock ports.Clock,
	log logrus.FieldLogger,
) *AttendanceService {
	return &AttendanceService{
		qr:       qr,
		store:    store,
		eventPub: eventPub,
		verifier: verifier,
		clock:    clock,
		log:      log.WithField("component", "attendance"),
	}
}

// OpenSession issues a QR token and announces the new session
func (s *AttendanceService) OpenSession(ctx context.Context, req core.IssueRequest) (core.IssuedToken, error) {
	issued, err := s.qr.IssueToken(req)
	if err != nil {
		return core.IssuedToken{}, err
	}

	if snap, err := s.qr.GetSessionSnapshot(issued.SessionID); err == nil {
		if err := s.eventPub.PublishSessionOpened(ctx, snap); err != nil {
			s.log.WithError(err).WithField("session_id", issued.SessionID).Warn("failed to publish session opened event")
		}
	}

	return issued, nil
}

// EndSession closes a session on behalf of its issuer
func (s *AttendanceService) EndSession(ctx context.Context, sessionID, issuerID string) (core.Snapshot, error) {
	snap, err := s.qr.CloseSession(sessionID, issuerID)
	if err != nil {
		return core.Snapshot{}, err
	}

	if err := s.eventPub.PublishSessionClosed(ctx, snap); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("failed to publish session closed event")
	}

	return snap, nil
}

// MarkAttendance verifies the student's credential, redeems the QR payload
// and persists the resulting attendance record.
func (s *AttendanceService) MarkAttendance(ctx context.Context, req MarkRequest) (core.AttendanceRecord, int, error) {
	if strings.TrimSpace(req.StudentID) == "" {
		return core.AttendanceRecord{}, 0, fmt.Errorf("student is required: %w", core.ErrInvalidInput)
	}

	method := core.MethodQR
	if req.Credential != nil && s.verifier != nil {
		if err := s.verifier.Verify(ctx, req.StudentID, *req.Credential); err != nil {
			s.log.WithError(err).WithField("student_id", req.StudentID).Info("identity verification failed")
			return core.AttendanceRecord{}, 0, fmt.Errorf("%s: %w", req.Credential.Method, core.ErrIdentityRejected)
		}
		method = core.MethodQR + "+" + req.Credential.Method
	}

	result, err := s.qr.ValidateScan(core.ScanRequest{
		Payload:             req.Payload,
		ScannerID:           req.StudentID,
		ClientFingerprint:   req.ClientFingerprint,
		LocationFingerprint: req.LocationFingerprint,
	})
	if err != nil {
		return core.AttendanceRecord{}, 0, err
	}

	rec := core.AttendanceRecord{
		ID:                uuid.New().String(),
		SessionID:         result.SessionID,
		StudentID:         req.StudentID,
		IssuerID:          result.IssuerID,
		SubjectLabel:      result.SubjectLabel,
		SessionKind:       result.SessionKind,
		Method:            method,
		ClientFingerprint: req.ClientFingerprint,
		MarkedAt:          s.clock.Now().UTC(),
	}

	if err := s.store.Record(ctx, rec); err != nil {
		return core.AttendanceRecord{}, 0, fmt.Errorf("failed to record attendance: %w", err)
	}

	if err := s.eventPub.PublishAttendanceMarked(ctx, rec, result.ScannedCount); err != nil {
		s.log.WithError(err).WithField("session_id", rec.SessionID).Warn("failed to publish attendance event")
	}

	s.log.WithFields(logrus.Fields{
		"session_id": rec.SessionID,
		"student_id": rec.StudentID,
		"method":     rec.Method,
	}).Info("attendance marked")

	return rec, result.ScannedCount, nil
}

// SessionAttendance returns the state and records of a session to its issuer
func (s *AttendanceService) SessionAttendance(ctx context.Context, sessionID, issuerID string) (SessionAttendance, error) {
	snap, err := s.qr.GetSessionSnapshot(sessionID)
	if err != nil {
		return SessionAttendance{}, err
	}
	if snap.IssuerID != issuerID {
		return SessionAttendance{}, core.ErrNotAuthorized
	}

	records, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return SessionAttendance{}, fmt.Errorf("failed to list attendance: %w", err)
	}

	return SessionAttendance{Snapshot: snap, Records: records}, nil
}

// Snapshot exposes the QR service snapshot for dashboards
func (s *AttendanceService) Snapshot(sessionID string) (core.Snapshot, error) {
	return s.qr.GetSessionSnapshot(sessionID)
}

// ActiveSessions lists the open sessions of an issuer, or all when issuerID is empty
func (s *AttendanceService) ActiveSessions(issuerID string) []core.Snapshot {
	return s.qr.ActiveSessions(issuerID)
}
