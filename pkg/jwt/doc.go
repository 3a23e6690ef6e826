// Package jwt signs and verifies HMAC JSON Web Tokens.
//
// It is a thin layer over github.com/golang-jwt/jwt/v5 that pins one
// algorithm per process (HS256 by default), requires an expiry claim on every
// token and exposes an injectable clock for tests. Tokens signed with any
// other algorithm, including "none", are rejected.
//
//	svc, err := jwt.NewFromString(cfg.SigningSecret, jwt.WithAlgorithm("HS256"))
//	token, err := svc.Generate(claims)
//	err = svc.Parse(token, &claims)
//
// Expired tokens fail with ErrExpiredToken; every other verification failure
// (bad signature, wrong algorithm, malformed input) fails with ErrInvalidToken.
package jwt
