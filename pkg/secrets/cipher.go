package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// Cipher encrypts opaque secret strings with AES-256-GCM under a key derived
// from a single process-wide master key. It is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a 32-byte master key.
func New(masterKey []byte) (*Cipher, error) {
	if len(masterKey) != KeySize {
		return nil, ErrCipherKeyInvalid
	}

	key, err := deriveKey(masterKey)
	if err != nil {
		return nil, err
	}
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrCipherKeyInvalid, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrCipherKeyInvalid, err)
	}

	return &Cipher{aead: aead}, nil
}

// NewFromBase64 builds a Cipher from a base64-encoded master key as it is
// stored in the environment.
func NewFromBase64(encoded string) (*Cipher, error) {
	key, err := DecodeKey(encoded)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// Encrypt returns base64(nonce || ciphertext || tag).
// An empty plaintext is not encrypted and yields an empty result.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	sealed, err := c.EncryptBytes([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. An empty ciphertext yields an empty plaintext.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.Join(ErrDecryptionFailed, ErrInvalidCiphertext, err)
	}
	plain, err := c.DecryptBytes(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// EncryptBytes seals data and prepends the random nonce.
func (c *Cipher) EncryptBytes(data []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(data)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}
	return c.aead.Seal(nonce, nonce, data, nil), nil
}

// DecryptBytes opens data produced by EncryptBytes.
func (c *Cipher) DecryptBytes(data []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return nil, errors.Join(ErrDecryptionFailed, ErrInvalidCiphertext)
	}
	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}
	return plain, nil
}
