package ports

import "github.com/layer-3/secatt/core"

// Tokenizer converts between session claims and QR payloads
type Tokenizer interface {
	ClaimsToToken(claims *core.TokenClaims) (string, error)
	TokenToClaims(token string) (*core.TokenClaims, error)
}
