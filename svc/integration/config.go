package integration

import (
	"errors"
	"time"
)

// GoogleKeepConfig configures the Google Keep OAuth client.
type GoogleKeepConfig struct {
	ClientID        string        `env:"GOOGLE_KEEP_CLIENT_ID,required"`
	ClientSecret    string        `env:"GOOGLE_KEEP_CLIENT_SECRET,required"`
	RedirectURL     string        `env:"GOOGLE_KEEP_REDIRECT_URL,required"`
	Scopes          []string      `env:"GOOGLE_KEEP_SCOPES" envSeparator:"," envDefault:"https://www.googleapis.com/auth/keep"`
	StateTTL        time.Duration `env:"GOOGLE_KEEP_STATE_TTL" envDefault:"10m"`
	CredentialLead  time.Duration `env:"GOOGLE_KEEP_CREDENTIAL_LEAD" envDefault:"1h"`
	NotesAPIBaseURL string        `env:"GOOGLE_KEEP_API_URL"`
}

// Validate checks scopes and lifetimes.
func (c *GoogleKeepConfig) Validate() error {
	if len(c.Scopes) == 0 {
		return errors.New("GOOGLE_KEEP_SCOPES must not be empty")
	}
	if c.StateTTL <= 0 || c.CredentialLead <= 0 {
		return errors.New("GOOGLE_KEEP_STATE_TTL and GOOGLE_KEEP_CREDENTIAL_LEAD must be positive")
	}
	return nil
}

// StateStoreConfig selects where handshake states live.
type StateStoreConfig struct {
	Driver    string `env:"STATE_STORE" envDefault:"memory"`
	KeyPrefix string `env:"STATE_STORE_PREFIX" envDefault:"authcore:oauth_state:"`
}

// Validate accepts the memory and redis drivers.
func (c *StateStoreConfig) Validate() error {
	if c.Driver != "memory" && c.Driver != "redis" {
		return errors.New("STATE_STORE must be memory or redis")
	}
	return nil
}
