package integration

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// KeepScope grants read and write access to Google Keep notes.
const KeepScope = "https://www.googleapis.com/auth/keep"

type googleProvider struct {
	name       string
	conf       *oauth2.Config
	httpClient *http.Client
}

// NewGoogleProvider returns a Provider for Google APIs named name, requesting
// offline access so a refresh token is issued.
func NewGoogleProvider(name string, cfg GoogleKeepConfig) Provider {
	return &googleProvider{
		name: name,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the provider key records are stored under.
func (p *googleProvider) Name() string {
	return p.name
}

// AuthURL requests offline access so a refresh token is issued.
func (p *googleProvider) AuthURL(state string) string {
	return p.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for credentials.
func (p *googleProvider) Exchange(ctx context.Context, code string) (*Credentials, error) {
	tok, err := p.conf.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, errors.Join(ErrProviderExchangeFailed, err)
	}
	return p.credentials(tok, p.conf.ClientID, p.conf.ClientSecret, p.conf.Endpoint.TokenURL, p.conf.Scopes), nil
}

// Refresh obtains a new access token with the stored refresh token.
func (p *googleProvider) Refresh(ctx context.Context, creds Credentials) (*Credentials, error) {
	if creds.RefreshToken == "" {
		return nil, errors.Join(ErrProviderRefreshFailed, errors.New("refresh token is empty"))
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Scopes:       creds.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.conf.Endpoint.AuthURL,
			TokenURL:  creds.TokenURI,
			AuthStyle: p.conf.Endpoint.AuthStyle,
		},
	}
	if conf.Endpoint.TokenURL == "" {
		conf.Endpoint.TokenURL = p.conf.Endpoint.TokenURL
	}

	expired := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Unix(1, 0),
	}
	tok, err := conf.TokenSource(p.clientContext(ctx), expired).Token()
	if err != nil {
		return nil, errors.Join(ErrProviderRefreshFailed, err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = creds.RefreshToken
	}
	return p.credentials(tok, conf.ClientID, conf.ClientSecret, conf.Endpoint.TokenURL, creds.Scopes), nil
}

func (p *googleProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *googleProvider) credentials(tok *oauth2.Token, clientID, clientSecret, tokenURI string, scopes []string) *Credentials {
	if granted, ok := tok.Extra("scope").(string); ok && granted != "" {
		scopes = strings.Fields(granted)
	}
	return &Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     tokenURI,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes,
		Expiry:       tok.Expiry,
	}
}

var _ Provider = (*googleProvider)(nil)
