// Package secrets encrypts OAuth tokens and other opaque secrets before they
// are persisted.
//
// A Cipher is built once at startup from a 32-byte master key. The key used
// for AES-256-GCM is derived from the master key with HKDF-SHA256, so the raw
// master key is never used directly. Each encryption uses a fresh random
// nonce, which is prepended to the sealed payload and base64 encoded.
//
// Empty input is treated as "absent": Encrypt("") and Decrypt("") both return
// an empty string without touching the cipher. A corrupt ciphertext or one
// produced under a different key fails with ErrDecryptionFailed.
//
// # Usage
//
//	c, err := secrets.NewFromBase64(os.Getenv("SECRETS_ENCRYPTION_KEY"))
//	if err != nil {
//	    // misconfiguration, abort startup
//	}
//
//	ct, err := c.Encrypt(token.AccessToken)
//	plain, err := c.Decrypt(ct)
package secrets
