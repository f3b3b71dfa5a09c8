package identity

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"

	"github.com/layer-3/secatt/core"
	"github.com/layer-3/secatt/ports"
)

// MethodRFID names RFID card credentials
const MethodRFID = "rfid"

// CardRegistry verifies RFID card reads against enrolled cards
type CardRegistry struct {
	mu    sync.RWMutex
	cards map[string]string // normalized card uid -> user id
}

// NewCardRegistry creates a registry from a card uid to user id table
func NewCardRegistry(cards map[string]string) *CardRegistry {
	r := &CardRegistry{cards: make(map[string]string, len(cards))}
	for uid, user := range cards {
		r.cards[normalizeUID(uid)] = user
	}
	return r
}

var _ ports.IdentityVerifier = (*CardRegistry)(nil)

// ParseCards reads "uid=user,uid=user" pairs
func ParseCards(s string) (map[string]string, error) {
	cards := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		uid, user, ok := strings.Cut(pair, "=")
		uid, user = strings.TrimSpace(uid), strings.TrimSpace(user)
		if !ok || uid == "" || user == "" {
			return nil, fmt.Errorf("invalid card entry %q", pair)
		}
		cards[uid] = user
	}
	return cards, nil
}

// Enroll binds a card to a user, replacing any previous binding of the card
func (r *CardRegistry) Enroll(uid, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[normalizeUID(uid)] = userID
}

// Verify checks that cred is an enrolled card belonging to userID
func (r *CardRegistry) Verify(ctx context.Context, userID string, cred core.Credential) error {
	if cred.Method != MethodRFID {
		return fmt.Errorf("unsupported credential %q", cred.Method)
	}

	r.mu.RLock()
	owner, ok := r.cards[normalizeUID(cred.Value)]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("card not enrolled")
	}
	if subtle.ConstantTimeCompare([]byte(owner), []byte(userID)) != 1 {
		return fmt.Errorf("card belongs to another user")
	}
	return nil
}

func normalizeUID(uid string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(uid), ":", ""))
}
