package core

import (
	"fmt"
	"strings"
	"time"
)

// SessionKind classifies an attendance session
type SessionKind string

const (
	SessionKindLecture SessionKind = "lecture"
	SessionKindLab     SessionKind = "lab"
)

// ParseSessionKind returns the SessionKind named by s
func ParseSessionKind(s string) (SessionKind, error) {
	switch k := SessionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case SessionKindLecture, SessionKindLab:
		return k, nil
	default:
		return "", fmt.Errorf("unknown session kind %q: %w", s, ErrInvalidInput)
	}
}

// Valid reports whether k is one of the known kinds
func (k SessionKind) Valid() bool {
	return k == SessionKindLecture || k == SessionKindLab
}

// TokenClaims is the plaintext sealed inside a QR payload
type TokenClaims struct {
	SessionID           string      // Unique session identifier, url-safe random
	IssuerID            string      // Faculty member who opened the session
	SubjectLabel        string      // Course or subject name
	SessionKind         SessionKind // Lecture or lab
	CreatedAt           time.Time   // When the session was opened
	ExpiresAt           time.Time   // When scans stop being accepted
	LocationFingerprint *string     // Optional location binding
	Nonce               string      // Random value, keeps ciphertexts distinct
}

// Redemption is one successful scan of a session token
type Redemption struct {
	ScannerID         string
	RedeemedAt        time.Time
	ClientFingerprint string
}

// SessionToken is the live state of an issued session
type SessionToken struct {
	TokenClaims
	RedeemedBy []Redemption
	IsOpen     bool
}

// Expired reports whether the session no longer accepts scans at now.
// A session is still valid at exactly ExpiresAt.
func (s *SessionToken) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IssueRequest carries the inputs of a token issuance
type IssueRequest struct {
	IssuerID            string
	SubjectLabel        string
	SessionKind         SessionKind
	LocationFingerprint *string
	Duration            time.Duration // zero selects the configured default
}

// IssuedToken is returned to the faculty member who opened a session
type IssuedToken struct {
	Payload   string
	SessionID string
	ExpiresAt time.Time
}

// ScanRequest carries the inputs of a token redemption
type ScanRequest struct {
	Payload             string
	ScannerID           string
	ClientFingerprint   string
	LocationFingerprint *string
}

// ScanResult describes a successful redemption
type ScanResult struct {
	SessionID    string
	IssuerID     string
	SubjectLabel string
	SessionKind  SessionKind
	ScannedCount int
}

// Snapshot is a read-only projection of a session for dashboards
type Snapshot struct {
	SessionID    string
	IssuerID     string
	SubjectLabel string
	SessionKind  SessionKind
	ScannedCount int
	IsOpen       bool
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Credential is an identity proof captured alongside a scan
type Credential struct {
	Method string // "rfid"
	Value  string
}
