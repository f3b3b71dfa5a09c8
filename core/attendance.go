package core

import "time"

const (
	MethodQR     = "qr"
	MethodQRRFID = "qr+rfid"
)

// AttendanceRecord is the durable result of a validated scan
type AttendanceRecord struct {
	ID                string      `json:"id"`
	SessionID         string      `json:"session_id"`
	StudentID         string      `json:"student_id"`
	IssuerID          string      `json:"issuer_id"`
	SubjectLabel      string      `json:"subject_label"`
	SessionKind       SessionKind `json:"session_kind"`
	Method            string      `json:"method"`
	ClientFingerprint string      `json:"client_fingerprint,omitempty"`
	MarkedAt          time.Time   `json:"marked_at"`
}
