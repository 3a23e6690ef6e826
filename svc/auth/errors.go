package auth

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/authcore/pkg/password"
	"github.com/dmitrymomot/authcore/pkg/validator"
)

// Account errors
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountInactive      = errors.New("account is inactive")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrIdentityNotFound     = errors.New("identity not found")
	ErrForbidden            = errors.New("forbidden")
)

// Challenge errors
var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeMismatch = errors.New("challenge code mismatch")
)

// Token errors
var (
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenClassMismatch  = errors.New("token class mismatch")
	ErrTokenMalformed      = errors.New("token malformed")
	ErrTokenMissingSubject = errors.New("token missing subject")
	ErrUnknownTokenClass   = errors.New("unknown token class")
)

// IsUnauthorized reports whether err means the caller failed to authenticate.
func IsUnauthorized(err error) bool {
	for _, target := range []error{
		ErrTokenExpired,
		ErrTokenClassMismatch,
		ErrTokenMalformed,
		ErrTokenMissingSubject,
		ErrInvalidCredentials,
		ErrIdentityNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HTTPStatus maps err onto a response status for transport layers.
// Anything unrecognized is a server error.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsUnauthorized(err):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrAccountInactive):
		return http.StatusForbidden
	case errors.Is(err, ErrAccountAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrChallengeNotFound),
		errors.Is(err, ErrChallengeExpired),
		errors.Is(err, ErrChallengeMismatch),
		errors.Is(err, validator.ErrValidationFailed),
		errors.Is(err, password.ErrEmptyPassword),
		errors.Is(err, password.ErrPasswordTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
