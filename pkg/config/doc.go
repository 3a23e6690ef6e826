// Package config loads typed configuration from environment variables using
// github.com/caarlos0/env/v11, with optional .env support via
// github.com/joho/godotenv. Structs implementing Validator are validated
// after parsing; a validation failure is reported as ErrInvalidConfig.
package config
