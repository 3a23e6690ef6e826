// Package sanitizer normalizes user-supplied strings before they are
// validated or stored.
//
//	email := sanitizer.NormalizeEmail("  John..Doe@Example.COM ")
//	// "john.doe@example.com"
//
//	clean := sanitizer.Compose(sanitizer.NormalizeWhitespace, func(s string) string {
//		return sanitizer.MaxLength(s, 50)
//	})
package sanitizer
