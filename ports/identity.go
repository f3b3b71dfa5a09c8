package ports

import (
	"context"

	"github.com/layer-3/secatt/core"
)

// IdentityVerifier checks a captured credential against a user
type IdentityVerifier interface {
	Verify(ctx context.Context, userID string, cred core.Credential) error
}
