// Package email sends transactional messages. Production uses Postmark
// (github.com/mrz1836/postmark); development writes messages to disk with
// DevSender.
package email
