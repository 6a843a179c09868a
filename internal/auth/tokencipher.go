package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// TokenCipher encrypts game session tokens before they are stored.
// The key is a base64-encoded 32-byte secret from KG_TOKEN_ENCRYPTION_KEY.
type TokenCipher struct {
	key [32]byte
}

// NewTokenCipher parses the base64 key and returns a cipher.
func NewTokenCipher(encodedKey string) (*TokenCipher, error) {
	if encodedKey == "" {
		return nil, fmt.Errorf("token encryption key is not set")
	}

	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(encodedKey)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid token encryption key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("token encryption key must decode to 32 bytes, got %d", len(raw))
	}

	c := &TokenCipher{}
	copy(c.key[:], raw)
	return c, nil
}

// Encrypt seals a token and returns it base64-encoded with the nonce prefixed.
func (c *TokenCipher) Encrypt(token string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(token), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *TokenCipher) Decrypt(encrypted string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("invalid encrypted token: %w", err)
	}
	if len(raw) < 24 {
		return "", fmt.Errorf("encrypted token too short")
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &c.key)
	if !ok {
		return "", fmt.Errorf("failed to decrypt token")
	}
	return string(plain), nil
}
