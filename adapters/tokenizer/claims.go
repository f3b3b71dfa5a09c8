package tokenizer

import (
	"time"

	"github.com/layer-3/secatt/core"
)

// SessionClaims is the canonical plaintext form of core.TokenClaims
type SessionClaims struct {
	SessionID string    `json:"sid"`
	IssuerID  string    `json:"iss"`
	Subject   string    `json:"sub"`
	Kind      string    `json:"knd"`
	CreatedAt time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	Location  *string   `json:"loc,omitempty"`
	Nonce     string    `json:"nce"`
}

func claimsFromCore(c *core.TokenClaims) SessionClaims {
	return SessionClaims{
		SessionID: c.SessionID,
		IssuerID:  c.IssuerID,
		Subject:   c.SubjectLabel,
		Kind:      string(c.SessionKind),
		CreatedAt: c.CreatedAt.UTC(),
		ExpiresAt: c.ExpiresAt.UTC(),
		Location:  c.LocationFingerprint,
		Nonce:     c.Nonce,
	}
}

// toCore validates the decoded field set and converts it back
func (c SessionClaims) toCore() (*core.TokenClaims, error) {
	if c.SessionID == "" || c.IssuerID == "" || c.Subject == "" || c.Nonce == "" {
		return nil, core.ErrMalformedToken
	}
	if c.CreatedAt.IsZero() || c.ExpiresAt.IsZero() {
		return nil, core.ErrMalformedToken
	}
	kind := core.SessionKind(c.Kind)
	if !kind.Valid() {
		return nil, core.ErrMalformedToken
	}

	return &core.TokenClaims{
		SessionID:           c.SessionID,
		IssuerID:            c.IssuerID,
		SubjectLabel:        c.Subject,
		SessionKind:         kind,
		CreatedAt:           c.CreatedAt,
		ExpiresAt:           c.ExpiresAt,
		LocationFingerprint: c.Location,
		Nonce:               c.Nonce,
	}, nil
}
