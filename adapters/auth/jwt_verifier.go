package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/secatt/core"
)

// Audience is the aud claim expected on bearer tokens
const Audience = "secatt"

// JWTVerifier validates HS256 bearer tokens issued by the campus login service
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewJWTVerifier creates a verifier for tokens signed with secret
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret, now: time.Now}
}

// WithClock replaces the time source used for expiry checks
func (v *JWTVerifier) WithClock(now func() time.Time) *JWTVerifier {
	v.now = now
	return v
}

// Verify parses a bearer token and returns its principal
func (v *JWTVerifier) Verify(tokenStr string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &PrincipalClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithAudience(Audience), jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, fmt.Errorf("bearer token expired: %w", core.ErrNotAuthorized)
		}
		return Principal{}, fmt.Errorf("invalid bearer token: %w", core.ErrNotAuthorized)
	}

	claims, ok := token.Claims.(*PrincipalClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Principal{}, fmt.Errorf("invalid bearer claims: %w", core.ErrNotAuthorized)
	}

	switch claims.Role {
	case RoleFaculty, RoleStudent, RoleAdmin:
	default:
		return Principal{}, fmt.Errorf("unknown role %q: %w", claims.Role, core.ErrNotAuthorized)
	}

	return Principal{UserID: claims.Subject, Role: claims.Role}, nil
}

// Sign issues a bearer token for p. Used by tooling and tests; production
// tokens come from the login service.
func (v *JWTVerifier) Sign(p Principal, ttl time.Duration) (string, error) {
	now := v.now()
	claims := PrincipalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: p.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
