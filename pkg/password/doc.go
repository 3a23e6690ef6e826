// Package password hashes and verifies login passwords with bcrypt, running
// each call on a bounded async.Pool.
package password
