package service

import (
	"sort"
	"sync"
	"time"

	"github.com/layer-3/secatt/core"
)

type entry struct {
	session  core.SessionToken
	scanners map[string]struct{}
}

func (e *entry) snapshot() core.Snapshot {
	return core.Snapshot{
		SessionID:    e.session.SessionID,
		IssuerID:     e.session.IssuerID,
		SubjectLabel: e.session.SubjectLabel,
		SessionKind:  e.session.SessionKind,
		ScannedCount: len(e.session.RedeemedBy),
		IsOpen:       e.session.IsOpen,
		CreatedAt:    e.session.CreatedAt,
		ExpiresAt:    e.session.ExpiresAt,
	}
}

// registry holds the live sessions. A single mutex covers lookups, redemptions,
// closes and sweeps so a sweep can never interleave with a redemption.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*entry)}
}

func (r *registry) insert(claims core.TokenClaims) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[claims.SessionID] = &entry{
		session: core.SessionToken{
			TokenClaims: claims,
			IsOpen:      true,
		},
		scanners: make(map[string]struct{}),
	}
}

// redeem runs lookup, state checks and commit as one unit
func (r *registry) redeem(claims *core.TokenClaims, req core.ScanRequest, now time.Time, requireLocation bool) (core.ScanResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[claims.SessionID]
	if !ok {
		return core.ScanResult{}, core.ErrSessionNotFound
	}
	s := &e.session

	// A payload sealed under the same key for a different issuer can only be forged.
	if s.IssuerID != claims.IssuerID {
		return core.ScanResult{}, core.ErrTamperedOrInvalidToken
	}

	if !s.IsOpen {
		return core.ScanResult{}, core.ErrSessionClosed
	}

	if s.Expired(now) {
		return core.ScanResult{}, core.ErrTokenExpired
	}

	if _, dup := e.scanners[req.ScannerID]; dup {
		return core.ScanResult{}, core.ErrAlreadyScanned
	}

	if s.LocationFingerprint != nil {
		switch {
		case req.LocationFingerprint != nil && *req.LocationFingerprint != *s.LocationFingerprint:
			return core.ScanResult{}, core.ErrLocationMismatch
		case req.LocationFingerprint == nil && requireLocation:
			return core.ScanResult{}, core.ErrLocationMismatch
		}
	}

	e.scanners[req.ScannerID] = struct{}{}
	s.RedeemedBy = append(s.RedeemedBy, core.Redemption{
		ScannerID:         req.ScannerID,
		RedeemedAt:        now,
		ClientFingerprint: req.ClientFingerprint,
	})

	return core.ScanResult{
		SessionID:    s.SessionID,
		IssuerID:     s.IssuerID,
		SubjectLabel: s.SubjectLabel,
		SessionKind:  s.SessionKind,
		ScannedCount: len(s.RedeemedBy),
	}, nil
}

func (r *registry) close(sessionID, issuerID string) (core.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return core.Snapshot{}, core.ErrSessionNotFound
	}
	if e.session.IssuerID != issuerID {
		return core.Snapshot{}, core.ErrNotAuthorized
	}

	e.session.IsOpen = false
	return e.snapshot(), nil
}

func (r *registry) snapshot(sessionID string) (core.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return core.Snapshot{}, core.ErrSessionNotFound
	}
	return e.snapshot(), nil
}

// redemptions returns a copy of the ordered redemption list
func (r *registry) redemptions(sessionID string) ([]core.Redemption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	out := make([]core.Redemption, len(e.session.RedeemedBy))
	copy(out, e.session.RedeemedBy)
	return out, nil
}

// active lists open, unexpired sessions, oldest first. An empty issuerID
// matches every issuer.
func (r *registry) active(issuerID string, now time.Time) []core.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []core.Snapshot
	for _, e := range r.sessions {
		if !e.session.IsOpen || e.session.Expired(now) {
			continue
		}
		if issuerID != "" && e.session.IssuerID != issuerID {
			continue
		}
		out = append(out, e.snapshot())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// sweep drops sessions whose expiry has passed and returns how many were removed
func (r *registry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.sessions {
		if e.session.Expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
