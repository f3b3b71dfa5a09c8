package tokenizer_test

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/layer-3/secatt/adapters/tokenizer"
	"github.com/layer-3/secatt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func testClaims() *core.TokenClaims {
	loc := "a1b2c3d4e5f60718"
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &core.TokenClaims{
		SessionID:           "c2Vzc2lvbi1pZC0xMjM0NTY3ODkwYWJjZGVm",
		IssuerID:            "F1",
		SubjectLabel:        "DBMS",
		SessionKind:         core.SessionKindLecture,
		CreatedAt:           now,
		ExpiresAt:           now.Add(10 * time.Minute),
		LocationFingerprint: &loc,
		Nonce:               "00112233445566778899aabbccddeeff",
	}
}

func newTokenizer(t *testing.T) (*tokenizer.AEADTokenizer, []byte) {
	t.Helper()
	key, err := tokenizer.GenerateKey()
	require.NoError(t, err)
	tk, err := tokenizer.NewAEADTokenizer(key)
	require.NoError(t, err)
	return tk.(*tokenizer.AEADTokenizer), key
}

func sealRaw(t *testing.T, key []byte, plaintext string) string {
	t.Helper()
	aead, err := chacha20poly1305.NewX(key)
	require.NoError(t, err)
	nonce := make([]byte, aead.NonceSize())
	_, err = rand.Read(nonce)
	require.NoError(t, err)
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(tokenizer.Prefix))
	return tokenizer.Prefix + base64.StdEncoding.EncodeToString(sealed)
}

func TestRoundTrip(t *testing.T) {
	tk, _ := newTokenizer(t)
	claims := testClaims()

	token, err := tk.ClaimsToToken(claims)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, tokenizer.Prefix))

	got, err := tk.TokenToClaims(token)
	require.NoError(t, err)
	assert.Equal(t, claims.SessionID, got.SessionID)
	assert.Equal(t, claims.IssuerID, got.IssuerID)
	assert.Equal(t, claims.SubjectLabel, got.SubjectLabel)
	assert.Equal(t, claims.SessionKind, got.SessionKind)
	assert.True(t, claims.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, claims.ExpiresAt.Equal(got.ExpiresAt))
	require.NotNil(t, got.LocationFingerprint)
	assert.Equal(t, *claims.LocationFingerprint, *got.LocationFingerprint)
	assert.Equal(t, claims.Nonce, got.Nonce)
}

func TestRoundTripWithoutLocation(t *testing.T) {
	tk, _ := newTokenizer(t)
	claims := testClaims()
	claims.LocationFingerprint = nil

	token, err := tk.ClaimsToToken(claims)
	require.NoError(t, err)

	got, err := tk.TokenToClaims(token)
	require.NoError(t, err)
	assert.Nil(t, got.LocationFingerprint)
}

func TestSameClaimsProduceDistinctTokens(t *testing.T) {
	tk, _ := newTokenizer(t)
	claims := testClaims()

	a, err := tk.ClaimsToToken(claims)
	require.NoError(t, err)
	b, err := tk.ClaimsToToken(claims)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTamperedByteIsDetected(t *testing.T) {
	tk, _ := newTokenizer(t)
	token, err := tk.ClaimsToToken(testClaims())
	require.NoError(t, err)

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(token, tokenizer.Prefix))
	require.NoError(t, err)

	for i := range sealed {
		flipped := make([]byte, len(sealed))
		copy(flipped, sealed)
		flipped[i] ^= 0x01

		_, err := tk.TokenToClaims(tokenizer.Prefix + base64.StdEncoding.EncodeToString(flipped))
		require.ErrorIs(t, err, core.ErrTamperedOrInvalidToken, "byte %d", i)
	}
}

func TestWrongKey(t *testing.T) {
	issuer, _ := newTokenizer(t)
	other, _ := newTokenizer(t)

	token, err := issuer.ClaimsToToken(testClaims())
	require.NoError(t, err)

	_, err = other.TokenToClaims(token)
	assert.ErrorIs(t, err, core.ErrTamperedOrInvalidToken)
}

func TestMalformedPayloads(t *testing.T) {
	tk, _ := newTokenizer(t)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", core.ErrMalformedToken},
		{"missing prefix", "https://example.com/attendance", core.ErrMalformedToken},
		{"lowercase prefix", "secatt:AAAA", core.ErrMalformedToken},
		{"bad base64", tokenizer.Prefix + "not base64!!", core.ErrMalformedToken},
		{"truncated", tokenizer.Prefix + base64.StdEncoding.EncodeToString([]byte("short")), core.ErrTamperedOrInvalidToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tk.TokenToClaims(tc.token)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAuthenticatedButMalformedPlaintext(t *testing.T) {
	tk, key := newTokenizer(t)

	tests := map[string]string{
		"not json":       "hello",
		"missing fields": `{"sid":"abc"}`,
		"wrong type":     `{"sid":5,"iss":"F1","sub":"DBMS","knd":"lecture","iat":"2026-03-02T09:00:00Z","exp":"2026-03-02T09:10:00Z","nce":"ab"}`,
		"unknown kind":   `{"sid":"abc","iss":"F1","sub":"DBMS","knd":"seminar","iat":"2026-03-02T09:00:00Z","exp":"2026-03-02T09:10:00Z","nce":"ab"}`,
	}

	for name, plaintext := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tk.TokenToClaims(sealRaw(t, key, plaintext))
			assert.ErrorIs(t, err, core.ErrMalformedToken)
		})
	}
}

func TestParseKey(t *testing.T) {
	key, err := tokenizer.GenerateKey()
	require.NoError(t, err)

	parsed, err := tokenizer.ParseKey(tokenizer.EncodeKey(key))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	parsed, err = tokenizer.ParseKey(base64.RawURLEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = tokenizer.ParseKey(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)

	_, err = tokenizer.ParseKey("%%%")
	assert.Error(t, err)
}

func TestNewAEADTokenizerRejectsShortKey(t *testing.T) {
	_, err := tokenizer.NewAEADTokenizer([]byte("short"))
	assert.Error(t, err)
}
