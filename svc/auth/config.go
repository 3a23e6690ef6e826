package auth

import (
	"fmt"
	"time"
)

// Config holds token, challenge, and hashing settings.
type Config struct {
	SigningSecret    string        `env:"AUTH_SIGNING_SECRET,required"`
	SigningAlgorithm string        `env:"AUTH_SIGNING_ALGORITHM" envDefault:"HS256"`
	AccessTokenTTL   time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"18h"`
	RefreshTokenTTL  time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"168h"`
	ChallengeTTL     time.Duration `env:"AUTH_OTP_TTL" envDefault:"5m"`
	ChallengeLength  int           `env:"AUTH_OTP_LENGTH" envDefault:"6"`
	BcryptCost       int           `env:"AUTH_BCRYPT_COST" envDefault:"10"`
	HashWorkers      int           `env:"AUTH_HASH_WORKERS" envDefault:"4"`
}

// Validate rejects lifetimes that would make every token or code unusable.
func (c *Config) Validate() error {
	switch {
	case len(c.SigningSecret) < 32:
		return fmt.Errorf("AUTH_SIGNING_SECRET must be at least 32 bytes")
	case c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0:
		return fmt.Errorf("token lifetimes must be positive")
	case c.AccessTokenTTL > c.RefreshTokenTTL:
		return fmt.Errorf("AUTH_ACCESS_TOKEN_TTL must not exceed AUTH_REFRESH_TOKEN_TTL")
	case c.ChallengeTTL <= 0:
		return fmt.Errorf("AUTH_OTP_TTL must be positive")
	case c.ChallengeLength < 4 || c.ChallengeLength > 10:
		return fmt.Errorf("AUTH_OTP_LENGTH must be between 4 and 10")
	}
	return nil
}
