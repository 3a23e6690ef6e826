// Package account exposes the identity and Google Keep flows as a JSON API
// mounted on a chi router.
//
// Routes:
//
//	POST   /auth/verify-email         send an OTP to an email address
//	POST   /auth/verify-email-otp     check an OTP without consuming it
//	POST   /auth/register             create an account with a verified OTP
//	POST   /auth/login                exchange email and password for tokens
//	POST   /auth/token                OAuth2 password grant (form encoded)
//	POST   /auth/refresh              rotate a refresh token
//	GET    /users/me                  current identity
//	POST   /google-keep/auth/google-keep  start the consent flow
//	POST   /google-keep/auth/callback     finish the consent flow
//	GET    /google-keep/auth/status       connection status
//	DELETE /google-keep/auth              disconnect
//	POST   /google-keep/notes             create a Keep note
//
// Errors are rendered as {"error": "...", "fields": {...}} with a status
// derived from the service sentinel errors.
package account
