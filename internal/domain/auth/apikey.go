package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active API key matches a hash.
var ErrKeyNotFound = errors.New("api key not found")

// ScopePaymentsWebhook allows calling the payment provider callback.
const ScopePaymentsWebhook = "payments:webhook"

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key grants scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey returns the hex HMAC-SHA256 of key under pepper, as stored in the
// api_keys table.
func HashKey(pepper []byte, key string) string {
	return hex.EncodeToString(mac(pepper, key))
}

// Matches reports whether key hashes to the stored KeyHash, in constant time.
func (k *APIKeyInfo) Matches(pepper []byte, key string) bool {
	stored, err := hex.DecodeString(k.KeyHash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(mac(pepper, key), stored) == 1
}

func mac(pepper []byte, key string) []byte {
	h := hmac.New(sha256.New, pepper)
	h.Write([]byte(key))
	return h.Sum(nil)
}
