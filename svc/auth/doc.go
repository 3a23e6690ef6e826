// Package auth is the identity core: stateless bearer tokens, email OTP
// challenges, password accounts, and the per-request access gate.
//
// Tokens are HMAC-signed (see pkg/jwt) and carry a subject id, a class
// (access or refresh), and an expiry. A token is only accepted for the class
// it was issued for.
//
// Wiring:
//
//	signer, _ := jwt.NewFromString(cfg.SigningSecret, jwt.WithAlgorithm(cfg.SigningAlgorithm))
//	tokens := auth.NewTokenService(signer, auth.WithAccessTTL(cfg.AccessTokenTTL))
//	challenges := auth.NewChallengeService(store, auth.WithChallengeTTL(cfg.ChallengeTTL))
//	accounts := auth.NewAccountService(store, challenges, hasher, tokens, notifier)
//	gate := auth.NewGate(tokens, store)
//
//	mux.Handle("/admin/", auth.Authenticate(gate)(auth.RequireRoles(auth.RoleAdmin)(adminHandler)))
//
// Storage is supplied by the caller through IdentityStorage and
// ChallengeStorage; storage/postgres and storage/sqlite implement both.
package auth
