package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/secatt/core"
	"github.com/layer-3/secatt/ports"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultSessionTTL is used when an issuance request carries no duration
	DefaultSessionTTL = 10 * time.Minute

	// MaxSessionTTL bounds how long a single QR code stays redeemable
	MaxSessionTTL = 60 * time.Minute

	sessionIDBytes = 32
	nonceBytes     = 16
)

// QROptions tunes token lifetimes and location policy
type QROptions struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration

	// RequireLocation makes the location fingerprint mandatory at issuance,
	// and rejects scans without one for sessions that carry a fingerprint.
	RequireLocation bool
}

// QRService issues and validates attendance session tokens
type QRService struct {
	tokenizer ports.Tokenizer
	clock     ports.Clock
	log       logrus.FieldLogger
	sessions  *registry

	defaultTTL      time.Duration
	maxTTL          time.Duration
	requireLocation bool
}

// NewQRService creates a new QR session token service
func NewQRService(
	tokenizer ports.Tokenizer,
	clock ports.Clock,
	log logrus.FieldLogger,
	opts QROptions,
) *QRService {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultSessionTTL
	}
	if opts.MaxTTL <= 0 {
		opts.MaxTTL = MaxSessionTTL
	}
	if opts.DefaultTTL > opts.MaxTTL {
		opts.DefaultTTL = opts.MaxTTL
	}

	return &QRService{
		tokenizer:       tokenizer,
		clock:           clock,
		log:             log.WithField("component", "qr"),
		sessions:        newRegistry(),
		defaultTTL:      opts.DefaultTTL,
		maxTTL:          opts.MaxTTL,
		requireLocation: opts.RequireLocation,
	}
}

// IssueToken opens a new attendance session and returns its QR payload
func (s *QRService) IssueToken(req core.IssueRequest) (core.IssuedToken, error) {
	issuer := strings.TrimSpace(req.IssuerID)
	subject := strings.TrimSpace(req.SubjectLabel)

	if issuer == "" {
		return core.IssuedToken{}, fmt.Errorf("issuer is required: %w", core.ErrInvalidInput)
	}
	if subject == "" {
		return core.IssuedToken{}, fmt.Errorf("subject is required: %w", core.ErrInvalidInput)
	}
	if !req.SessionKind.Valid() {
		return core.IssuedToken{}, fmt.Errorf("unknown session kind %q: %w", req.SessionKind, core.ErrInvalidInput)
	}
	var location *string
	if req.LocationFingerprint != nil && *req.LocationFingerprint != "" {
		loc := *req.LocationFingerprint
		location = &loc
	}
	if s.requireLocation && location == nil {
		return core.IssuedToken{}, fmt.Errorf("location fingerprint is required: %w", core.ErrInvalidInput)
	}

	ttl, err := s.ttl(req.Duration)
	if err != nil {
		return core.IssuedToken{}, err
	}

	sessionID, err := randomString(sessionIDBytes, base64.RawURLEncoding.EncodeToString)
	if err != nil {
		return core.IssuedToken{}, fmt.Errorf("failed to generate session id: %w", err)
	}
	nonce, err := randomString(nonceBytes, hex.EncodeToString)
	if err != nil {
		return core.IssuedToken{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.clock.Now()
	claims := core.TokenClaims{
		SessionID:           sessionID,
		IssuerID:            issuer,
		SubjectLabel:        subject,
		SessionKind:         req.SessionKind,
		CreatedAt:           now,
		ExpiresAt:           now.Add(ttl),
		LocationFingerprint: location,
		Nonce:               nonce,
	}

	payload, err := s.tokenizer.ClaimsToToken(&claims)
	if err != nil {
		return core.IssuedToken{}, fmt.Errorf("failed to create token: %w", err)
	}

	if n := s.sessions.sweep(now); n > 0 {
		s.log.WithField("removed", n).Debug("swept expired sessions")
	}
	s.sessions.insert(claims)

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"issuer_id":  issuer,
		"subject":    subject,
		"kind":       req.SessionKind,
		"expires_at": claims.ExpiresAt,
	}).Info("session opened")

	return core.IssuedToken{
		Payload:   payload,
		SessionID: sessionID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// ValidateScan redeems a scanned payload for a scanner
func (s *QRService) ValidateScan(req core.ScanRequest) (core.ScanResult, error) {
	if strings.TrimSpace(req.ScannerID) == "" {
		return core.ScanResult{}, fmt.Errorf("scanner is required: %w", core.ErrInvalidInput)
	}
	if req.LocationFingerprint != nil && *req.LocationFingerprint == "" {
		req.LocationFingerprint = nil
	}

	claims, err := s.tokenizer.TokenToClaims(req.Payload)
	if err != nil {
		s.log.WithField("scanner_id", req.ScannerID).WithError(err).Debug("scan rejected")
		return core.ScanResult{}, err
	}

	result, err := s.sessions.redeem(claims, req, s.clock.Now(), s.requireLocation)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": claims.SessionID,
			"scanner_id": req.ScannerID,
		}).WithError(err).Debug("scan rejected")
		return core.ScanResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"session_id": result.SessionID,
		"scanner_id": req.ScannerID,
		"count":      result.ScannedCount,
	}).Debug("scan accepted")

	return result, nil
}

// CloseSession stops a session from accepting further scans. Only the
// issuer may close it.
func (s *QRService) CloseSession(sessionID, issuerID string) (core.Snapshot, error) {
	snap, err := s.sessions.close(sessionID, issuerID)
	if err != nil {
		return core.Snapshot{}, err
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"issuer_id":  issuerID,
		"count":      snap.ScannedCount,
	}).Info("session closed")

	return snap, nil
}

// GetSessionSnapshot returns the latest committed state of a session
func (s *QRService) GetSessionSnapshot(sessionID string) (core.Snapshot, error) {
	return s.sessions.snapshot(sessionID)
}

// Redemptions returns the ordered scans of a session
func (s *QRService) Redemptions(sessionID string) ([]core.Redemption, error) {
	return s.sessions.redemptions(sessionID)
}

// ActiveSessions lists open, unexpired sessions. An empty issuerID lists all.
func (s *QRService) ActiveSessions(issuerID string) []core.Snapshot {
	return s.sessions.active(issuerID, s.clock.Now())
}

// Sweep removes expired sessions and returns how many were dropped
func (s *QRService) Sweep() int {
	n := s.sessions.sweep(s.clock.Now())
	if n > 0 {
		s.log.WithFields(logrus.Fields{
			"removed":   n,
			"remaining": s.sessions.len(),
		}).Info("swept expired sessions")
	}
	return n
}

// RunSweeper sweeps on every tick until ctx is done
func (s *QRService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *QRService) ttl(d time.Duration) (time.Duration, error) {
	switch {
	case d == 0:
		return s.defaultTTL, nil
	case d < 0:
		return 0, fmt.Errorf("duration must be positive: %w", core.ErrInvalidInput)
	case d > s.maxTTL:
		return s.maxTTL, nil
	default:
		return d, nil
	}
}

func randomString(n int, encode func([]byte) string) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return encode(b), nil
}
