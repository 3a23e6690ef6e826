package integration

import "context"

// Provider hides the OAuth protocol details of one external service.
type Provider interface {
	// Name is the stable identifier stored with credential records.
	Name() string
	// AuthURL builds the consent URL carrying state.
	AuthURL(state string) string
	// Exchange trades an authorization code for credentials.
	Exchange(ctx context.Context, code string) (*Credentials, error)
	// Refresh obtains a new access token using creds.RefreshToken.
	Refresh(ctx context.Context, creds Credentials) (*Credentials, error)
}
