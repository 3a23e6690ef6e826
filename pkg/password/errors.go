package password

import "errors"

var (
	ErrEmptyPassword   = errors.New("password: empty password")
	ErrPasswordTooLong = errors.New("password: longer than 72 bytes")
	ErrInvalidDigest   = errors.New("password: malformed digest")
	ErrHashFailed      = errors.New("password: hashing failed")
)
