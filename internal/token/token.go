// Package token implements the Encrypted Token Store (C2): the agent
// decrypts the shared token file written by an external producer, using
// AES-256-GCM with a 12-byte nonce prefix. No caching — every call is a
// full decrypt, matching the tomei teacher's philosophy of stateless
// read paths over the secured directory.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"

	"github.com/openframe-oss/openframe-client/internal/agenterr"
)

const (
	keyLength   = 32
	nonceLength = 12
)

// Store decrypts the shared token file with a fixed 32-byte key.
type Store struct {
	key []byte
}

// New creates a Store. secret must be exactly 32 bytes; anything else is
// KindInvalidKey.
func New(secret []byte) (*Store, error) {
	if len(secret) != keyLength {
		return nil, agenterr.New(agenterr.CategoryCrypto, agenterr.KindInvalidKey,
			fmt.Sprintf("openframe secret must be %d bytes, got %d", keyLength, len(secret)))
	}
	return &Store{key: secret}, nil
}

// Decrypt base64-decodes b64Input, splits the leading 12-byte nonce from
// the AES-256-GCM ciphertext+tag, and returns the decrypted UTF-8 plaintext.
func (s *Store) Decrypt(b64Input string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64Input)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CategoryCrypto, agenterr.KindDecryptionFailed, "invalid base64 token", err)
	}
	if len(raw) < nonceLength {
		return "", agenterr.New(agenterr.CategoryCrypto, agenterr.KindDecryptionFailed,
			fmt.Sprintf("token too short: %d bytes, need at least %d", len(raw), nonceLength))
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CategoryCrypto, agenterr.KindDecryptionFailed, "failed to create cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CategoryCrypto, agenterr.KindDecryptionFailed, "failed to create GCM", err)
	}

	nonce, ciphertext := raw[:nonceLength], raw[nonceLength:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", agenterr.Wrap(agenterr.CategoryCrypto, agenterr.KindDecryptionFailed, "authentication tag mismatch", err)
	}
	return string(plaintext), nil
}

// Encrypt is the inverse of Decrypt, used by tests and by the external
// token producer's Go-language callers to build fixtures: it seals
// plaintext with AES-256-GCM under the caller-supplied 12-byte nonce and
// returns base64(nonce ‖ ciphertext+tag).
func Encrypt(key []byte, nonce []byte, plaintext string) (string, error) {
	if len(key) != keyLength {
		return "", agenterr.New(agenterr.CategoryCrypto, agenterr.KindInvalidKey, "key must be 32 bytes")
	}
	if len(nonce) != nonceLength {
		return "", fmt.Errorf("nonce must be %d bytes", nonceLength)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	out := append(append([]byte{}, nonce...), sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}
