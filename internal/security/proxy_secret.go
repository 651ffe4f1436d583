package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

const secretPrefix = "enc:v1:"

var (
	keyOnce   sync.Once
	cachedKey []byte

	ErrSecretKeyMissing = errors.New("security: STREAMGATE_SECRET_KEY is not configured")
)

// ResetProxyCipherForTests clears the cached key so tests can swap
// STREAMGATE_SECRET_KEY between cases.
func ResetProxyCipherForTests() {
	keyOnce = sync.Once{}
	cachedKey = nil
}

func secretKey() ([]byte, error) {
	keyOnce.Do(func() {
		raw := strings.TrimSpace(os.Getenv("STREAMGATE_SECRET_KEY"))
		if raw == "" {
			return
		}
		sum := sha256.Sum256([]byte(raw))
		cachedKey = sum[:]
	})
	if len(cachedKey) == 0 {
		return nil, ErrSecretKeyMissing
	}
	return cachedKey, nil
}

// EncryptProxySecret seals a proxy credential for storage. Plaintext secrets are
// never written to the database when a secret key is configured.
func EncryptProxySecret(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	key, err := secretKey()
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("security: create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("security: generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return secretPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptProxySecret opens a value produced by EncryptProxySecret. The second
// return reports whether the input was actually encrypted; legacy plaintext
// values pass through untouched.
func DecryptProxySecret(stored string) (string, bool, error) {
	if stored == "" {
		return "", false, nil
	}
	if !strings.HasPrefix(stored, secretPrefix) {
		return stored, false, nil
	}

	key, err := secretKey()
	if err != nil {
		return "", true, err
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, secretPrefix))
	if err != nil {
		return "", true, fmt.Errorf("security: decode secret: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", true, fmt.Errorf("security: create cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize() {
		return "", true, errors.New("security: sealed secret too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", true, fmt.Errorf("security: open secret: %w", err)
	}

	return string(plaintext), true, nil
}
