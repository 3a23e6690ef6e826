package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// VerifyAccountParams fills the email verification message.
type VerifyAccountParams struct {
	AppName   string
	FirstName string
	Code      string
	ExpiresIn string
}

// VerifyAccount is the OTP email sent before registration. Every field is
// HTML-escaped.
func VerifyAccount(p VerifyAccountParams) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		greeting := "Hi"
		if p.FirstName != "" {
			greeting += " " + templ.EscapeString(p.FirstName)
		}

		for _, chunk := range []string{
			`<!DOCTYPE html><html><body style="font-family: sans-serif;">`,
			`<p>`, greeting, `,</p>`,
			`<p>Use this code to verify your email address for `, templ.EscapeString(p.AppName), `:</p>`,
			`<p style="font-size: 28px; letter-spacing: 6px;"><strong>`, templ.EscapeString(p.Code), `</strong></p>`,
			`<p>The code expires in `, templ.EscapeString(p.ExpiresIn), `. If you did not request it, ignore this email.</p>`,
			`</body></html>`,
		} {
			if _, err := io.WriteString(w, chunk); err != nil {
				return err
			}
		}
		return nil
	})
}
