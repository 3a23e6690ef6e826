package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the required size of the master key (AES-256).
	KeySize = 32

	// derivationInfo separates keys derived for credential storage from any
	// other use of the same master key.
	derivationInfo = "authcore-credentials-v1"
)

// GenerateKey returns a new random master key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateEncodedKey returns a new random master key encoded with standard
// base64, the format expected by NewFromBase64.
func GenerateEncodedKey() (string, error) {
	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// DecodeKey decodes a base64 master key and checks its length.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, errors.Join(ErrCipherKeyInvalid, err)
	}
	if len(key) != KeySize {
		return nil, ErrCipherKeyInvalid
	}
	return key, nil
}

// deriveKey expands the master key with HKDF-SHA256. The caller must clear
// the returned slice once the AEAD has been built.
func deriveKey(master []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, master, nil, []byte(derivationInfo))
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(r, derived); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	return derived, nil
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
