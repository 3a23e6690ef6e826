package integration

import "errors"

var (
	ErrStateNotFound          = errors.New("oauth state not found or expired")
	ErrProviderDenied         = errors.New("authorization denied by provider")
	ErrProviderExchangeFailed = errors.New("provider code exchange failed")
	ErrProviderRefreshFailed  = errors.New("provider token refresh failed")
	ErrCredentialsNotFound    = errors.New("credentials not found")
	ErrNotConnected           = errors.New("integration not connected")
	ErrMissingCode            = errors.New("authorization code is missing")
	ErrKeepRequestFailed      = errors.New("keep api request failed")
)
