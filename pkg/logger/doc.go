// Package logger builds log/slog loggers with environment presets and
// request-scoped attributes, and provides attribute helpers so log keys stay
// consistent across services.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "authcore"),
//	    logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
//	    logger.WithContextExtractors(auth.IdentityLogExtractor),
//	)
//	log.ErrorContext(ctx, "credential decryption failed",
//	    logger.Component("vault"), logger.IdentityID(id), logger.Error(err))
//
// Secrets (tokens, passwords, OTP codes) must never be passed to a logger.
package logger
