package token

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNew_RejectsWrongKeyLength(t *testing.T) {
	_, err := New([]byte("too-short"))
	assert.Error(t, err)
}

func TestDecrypt_RoundTrip(t *testing.T) {
	key := []byte("01234567890123456789012345678901")
	nonce := make([]byte, nonceLength)
	_, err := rand.Read(nonce)
	require.NoError(t, err)

	encoded, err := Encrypt(key, nonce, "super-secret-token")
	require.NoError(t, err)

	store, err := New(key)
	require.NoError(t, err)

	plaintext, err := store.Decrypt(encoded)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-token", plaintext)
}

func TestDecrypt_RejectsTamperedCiphertext(t *testing.T) {
	key := []byte("01234567890123456789012345678901")
	nonce := make([]byte, nonceLength)
	_, err := rand.Read(nonce)
	require.NoError(t, err)

	encoded, err := Encrypt(key, nonce, "super-secret-token")
	require.NoError(t, err)

	store, err := New(key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	_, err = store.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestDecrypt_RejectsWrongKey(t *testing.T) {
	key := []byte("01234567890123456789012345678901")
	wrongKey := []byte("98765432109876543210987654321098")
	nonce := make([]byte, nonceLength)
	_, err := rand.Read(nonce)
	require.NoError(t, err)

	encoded, err := Encrypt(key, nonce, "super-secret-token")
	require.NoError(t, err)

	store, err := New(wrongKey)
	require.NoError(t, err)

	_, err = store.Decrypt(encoded)
	assert.Error(t, err)
}

// TestProperty_EncryptDecryptRoundTrip checks that any key/plaintext pair
// survives an encrypt-then-decrypt cycle unchanged (spec.md §8's
// Encrypted Token Store round-trip property).
func TestProperty_EncryptDecryptRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.SliceOfN(rapid.Byte(), keyLength, keyLength).Draw(t, "key")
		plaintext := rapid.String().Draw(t, "plaintext")
		nonce := rapid.SliceOfN(rapid.Byte(), nonceLength, nonceLength).Draw(t, "nonce")

		encoded, err := Encrypt(key, nonce, plaintext)
		if err != nil {
			t.Fatal(err)
		}

		store, err := New(key)
		if err != nil {
			t.Fatal(err)
		}

		got, err := store.Decrypt(encoded)
		if err != nil {
			t.Fatal(err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
		}
	})
}
