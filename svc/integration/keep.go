package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authcore/pkg/logger"
)

// DefaultKeepAPIURL is the Google Keep API root.
const DefaultKeepAPIURL = "https://keep.googleapis.com"

// Note is a Keep note as returned by the API.
type Note struct {
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
	Body       struct {
		Text struct {
			Text string `json:"text"`
		} `json:"text"`
	} `json:"body"`
}

type keepTextContent struct {
	Text string `json:"text"`
}

type keepSection struct {
	Text keepTextContent `json:"text"`
}

type keepCreateRequest struct {
	Title string      `json:"title"`
	Body  keepSection `json:"body"`
}

// KeepClient calls the Google Keep API on behalf of a connected identity.
type KeepClient struct {
	vault   *Vault
	baseURL string
	base    *http.Client
	logger  *slog.Logger
}

type KeepOption func(*KeepClient)

// WithKeepBaseURL points the client at a different API root.
func WithKeepBaseURL(u string) KeepOption {
	return func(k *KeepClient) {
		if u != "" {
			k.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithKeepHTTPClient sets the transport the oauth2 client wraps.
func WithKeepHTTPClient(c *http.Client) KeepOption {
	return func(k *KeepClient) {
		if c != nil {
			k.base = c
		}
	}
}

// WithKeepLogger sets the logger. Nil is ignored.
func WithKeepLogger(l *slog.Logger) KeepOption {
	return func(k *KeepClient) {
		if l != nil {
			k.logger = l
		}
	}
}

// NewKeepClient calls the Keep API with credentials taken from vault.
func NewKeepClient(vault *Vault, opts ...KeepOption) *KeepClient {
	k := &KeepClient{
		vault:   vault,
		baseURL: DefaultKeepAPIURL,
		base:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// CreateNote adds a text note to the identity's Keep account. Expired
// credentials are refreshed first; ErrNotConnected is returned when the
// identity has no stored credentials.
func (k *KeepClient) CreateNote(ctx context.Context, identityID int64, title, body string) (*Note, error) {
	k.vault.RefreshIfExpired(ctx, identityID)

	creds, err := k.vault.Fetch(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrCredentialsNotFound) {
			return nil, ErrNotConnected
		}
		return nil, err
	}

	payload, err := json.Marshal(keepCreateRequest{
		Title: title,
		Body:  keepSection{Text: keepTextContent{Text: body}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode note: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+"/v1/notes", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrKeepRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, k.base),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.AccessToken, TokenType: "Bearer"}),
	)
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrKeepRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		k.logger.WarnContext(ctx, "keep api rejected request",
			logger.Component("keep"),
			logger.IdentityID(identityID),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d: %s", ErrKeepRequestFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var note Note
	if err := json.NewDecoder(resp.Body).Decode(&note); err != nil {
		return nil, errors.Join(ErrKeepRequestFailed, fmt.Errorf("decode note: %w", err))
	}
	return &note, nil
}
