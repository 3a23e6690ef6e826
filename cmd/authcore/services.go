package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/authcore/pkg/async"
	"github.com/dmitrymomot/authcore/pkg/email"
	"github.com/dmitrymomot/authcore/pkg/jwt"
	"github.com/dmitrymomot/authcore/pkg/password"
	"github.com/dmitrymomot/authcore/svc/auth"
)

type authServices struct {
	tokens     *auth.TokenService
	challenges *auth.ChallengeService
	accounts   *auth.AccountService
	gate       *auth.Gate
}

func newAuthServices(repo repository, cfg auth.Config, notifier auth.ChallengeNotifier, log *slog.Logger) (*authServices, error) {
	signer, err := jwt.New([]byte(cfg.SigningSecret), jwt.WithAlgorithm(cfg.SigningAlgorithm))
	if err != nil {
		return nil, err
	}
	tokens := auth.NewTokenService(signer,
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
	)
	challenges := auth.NewChallengeService(repo,
		auth.WithChallengeTTL(cfg.ChallengeTTL),
		auth.WithCodeLength(cfg.ChallengeLength),
		auth.WithChallengeLogger(log),
	)
	hasher := password.NewHasher(
		password.WithCost(cfg.BcryptCost),
		password.WithPool(async.NewPool(cfg.HashWorkers)),
	)

	return &authServices{
		tokens:     tokens,
		challenges: challenges,
		accounts:   auth.NewAccountService(repo, challenges, hasher, tokens, notifier, auth.WithAccountLogger(log)),
		gate:       auth.NewGate(tokens, repo, auth.WithGateLogger(log)),
	}, nil
}

// newMailer picks Postmark when tokens are configured and writes messages to
// disk otherwise. Production refuses to start without Postmark.
func newMailer(app appConfig, cfg email.Config, log *slog.Logger) (email.EmailSender, error) {
	if cfg.PostmarkServerToken != "" || app.production() {
		return email.NewPostmarkClient(cfg)
	}
	log.Warn("postmark is not configured, writing emails to disk", slog.String("dir", cfg.DevOutputDir))
	return email.NewDevSender(cfg.DevOutputDir), nil
}

// noNotifier is for commands that never issue challenges.
var noNotifier = auth.ChallengeNotifierFunc(func(context.Context, auth.ChallengeNotice) error {
	return errors.New("challenge delivery is not configured")
})
