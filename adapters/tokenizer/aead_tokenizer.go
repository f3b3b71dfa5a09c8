package tokenizer

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/layer-3/secatt/core"
	"github.com/layer-3/secatt/ports"
	"golang.org/x/crypto/chacha20poly1305"
)

// Prefix tags every QR payload so foreign QR codes are rejected before decryption
const Prefix = "SECATT:"

// KeySize is the length in bytes of a tokenizer key
const KeySize = chacha20poly1305.KeySize

// AEADTokenizer implements the Tokenizer interface with XChaCha20-Poly1305
type AEADTokenizer struct {
	aead cipher.AEAD
}

// NewAEADTokenizer creates a tokenizer sealing payloads under key
func NewAEADTokenizer(key []byte) (ports.Tokenizer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &AEADTokenizer{aead: aead}, nil
}

// GenerateKey returns a fresh random key
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// EncodeKey returns the textual form of key accepted by ParseKey
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// ParseKey decodes a base64 (standard or url-safe) key
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(s); err == nil {
			if len(key) != KeySize {
				return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
			}
			return key, nil
		}
	}
	return nil, fmt.Errorf("key is not valid base64")
}

// ClaimsToToken seals claims into a tagged QR payload
func (t *AEADTokenizer) ClaimsToToken(claims *core.TokenClaims) (string, error) {
	plaintext, err := json.Marshal(claimsFromCore(claims))
	if err != nil {
		return "", fmt.Errorf("failed to encode claims: %w", err)
	}

	nonce := make([]byte, t.aead.NonceSize(), t.aead.NonceSize()+len(plaintext)+t.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := t.aead.Seal(nonce, nonce, plaintext, []byte(Prefix))

	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// TokenToClaims opens a QR payload and returns its claims
func (t *AEADTokenizer) TokenToClaims(token string) (*core.TokenClaims, error) {
	if !strings.HasPrefix(token, Prefix) {
		return nil, fmt.Errorf("missing %q prefix: %w", Prefix, core.ErrMalformedToken)
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(token, Prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", core.ErrMalformedToken)
	}

	ns := t.aead.NonceSize()
	if len(sealed) < ns+t.aead.Overhead() {
		return nil, fmt.Errorf("payload truncated: %w", core.ErrTamperedOrInvalidToken)
	}

	plaintext, err := t.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(Prefix))
	if err != nil {
		return nil, core.ErrTamperedOrInvalidToken
	}

	var claims SessionClaims
	if err := json.Unmarshal(plaintext, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", core.ErrMalformedToken)
	}

	return claims.toCore()
}
