package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

var numericStringRegex = regexp.MustCompile(`^[0-9]+$`)

// ValidEmail accepts an RFC 5322 address whose domain has at least one dot.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if strings.TrimSpace(value) == "" {
				return false
			}

			addr, err := mail.ParseAddress(value)
			if err != nil || addr.Address != value {
				return false
			}

			local, domain, ok := strings.Cut(addr.Address, "@")
			if !ok || local == "" {
				return false
			}
			if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
				return false
			}
			for part := range strings.SplitSeq(domain, ".") {
				if part == "" {
					return false
				}
			}
			return true
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a valid email address",
			TranslationKey: "validation.email",
			TranslationValues: map[string]any{
				"field": field,
			},
		},
	}
}

// ValidDigits requires exactly length ASCII digits.
func ValidDigits(field, value string, length int) Rule {
	return Rule{
		Check: func() bool {
			return len(value) == length && numericStringRegex.MatchString(value)
		},
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must be exactly %d digits", length),
			TranslationKey: "validation.digits",
			TranslationValues: map[string]any{
				"field":  field,
				"length": length,
			},
		},
	}
}
