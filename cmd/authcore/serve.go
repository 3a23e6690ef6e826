package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/authcore/modules/account"
	"github.com/dmitrymomot/authcore/pkg/clientip"
	"github.com/dmitrymomot/authcore/pkg/config"
	"github.com/dmitrymomot/authcore/pkg/email"
	"github.com/dmitrymomot/authcore/pkg/httpserver"
	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/ratelimiter"
	"github.com/dmitrymomot/authcore/pkg/redis"
	"github.com/dmitrymomot/authcore/pkg/requestid"
	"github.com/dmitrymomot/authcore/pkg/scheduler"
	"github.com/dmitrymomot/authcore/pkg/secrets"
	"github.com/dmitrymomot/authcore/svc/auth"
	"github.com/dmitrymomot/authcore/svc/integration"
)

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	autoMigrate := fs.Bool("migrate", true, "apply pending migrations before serving")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		app      appConfig
		authCfg  auth.Config
		httpCfg  httpserver.Config
		mailCfg  email.Config
		limitCfg ratelimiter.Config
		stateCfg integration.StateStoreConfig
	)
	if err := errors.Join(
		config.Load(&app),
		config.Load(&authCfg),
		config.Load(&httpCfg),
		config.Load(&mailCfg),
		config.Load(&limitCfg),
		config.Load(&stateCfg),
	); err != nil {
		return err
	}
	if app.EncryptionKey == "" {
		return errors.New("SECRETS_ENCRYPTION_KEY is required, generate one with `authcore genkey`")
	}
	cipher, err := secrets.NewFromBase64(app.EncryptionKey)
	if err != nil {
		return err
	}

	log := newLogger(app)

	db, err := openBackend(ctx, app.StorageDriver, log)
	if err != nil {
		return err
	}
	serving := false
	defer func() {
		if !serving {
			_ = db.close()
		}
	}()
	var hooks []httpserver.Option
	hooks = append(hooks, httpserver.WithShutdownHook(func(context.Context) error { return db.close() }))

	if *autoMigrate {
		if err := db.migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	checks := []httpserver.Check{{Name: "storage", Fn: db.repo.Healthcheck}}

	var rdb *goredis.Client
	if (app.GoogleKeepEnabled && stateCfg.Driver == storeRedis) || (app.RateLimitEnabled && app.RateLimitStore == storeRedis) {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return err
		}
		if rdb, err = redis.Connect(ctx, redisCfg); err != nil {
			return err
		}
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)})
		hooks = append(hooks, httpserver.WithShutdownHook(func(context.Context) error { return rdb.Close() }))
	}

	mailer, err := newMailer(app, mailCfg, log)
	if err != nil {
		return err
	}
	svc, err := newAuthServices(db.repo, authCfg, auth.NewEmailNotifier(mailer, app.Name), log)
	if err != nil {
		return err
	}

	jobs := scheduler.New(scheduler.WithLogger(log))
	if err := jobs.Add("purge-expired-challenges", scheduler.Every(15*time.Minute), func(ctx context.Context) error {
		_, err := svc.challenges.PurgeExpired(ctx)
		return err
	}); err != nil {
		return err
	}

	opts := account.RouterOptions{
		Accounts: svc.accounts,
		Gate:     svc.gate,
		Logger:   log,
	}

	if app.GoogleKeepEnabled {
		var keepCfg integration.GoogleKeepConfig
		if err := config.Load(&keepCfg); err != nil {
			return err
		}
		provider := integration.NewGoogleProvider(integration.ProviderGoogleKeep, keepCfg)
		vault := integration.NewVault(db.repo, cipher, provider,
			integration.WithCredentialLead(keepCfg.CredentialLead),
			integration.WithVaultLogger(log),
		)

		var states integration.StateStore
		if stateCfg.Driver == storeRedis {
			states = integration.NewRedisStateStore(rdb, stateCfg.KeyPrefix)
		} else {
			mem := integration.NewMemoryStateStore(time.Minute)
			hooks = append(hooks, httpserver.WithShutdownHook(func(context.Context) error { return mem.Close() }))
			states = mem
		}

		keepOpts := []integration.KeepOption{integration.WithKeepLogger(log)}
		if keepCfg.NotesAPIBaseURL != "" {
			keepOpts = append(keepOpts, integration.WithKeepBaseURL(keepCfg.NotesAPIBaseURL))
		}

		opts.Vault = vault
		opts.Coordinator = integration.NewCoordinator(states, provider, vault,
			integration.WithStateTTL(keepCfg.StateTTL),
			integration.WithCoordinatorLogger(log),
			integration.WithAfterComplete(integration.PurgeExpiredHook(vault)),
		)
		opts.Keep = integration.NewKeepClient(vault, keepOpts...)

		if err := jobs.Add("purge-expired-credentials", scheduler.Every(time.Hour), func(ctx context.Context) error {
			_, err := vault.PurgeExpired(ctx)
			return err
		}); err != nil {
			return err
		}
	}

	if app.RateLimitEnabled {
		var store ratelimiter.Store
		if app.RateLimitStore == storeRedis {
			store = ratelimiter.NewRedisStore(rdb, limitCfg.KeyPrefix)
		} else {
			mem := ratelimiter.NewMemoryStore()
			hooks = append(hooks, httpserver.WithShutdownHook(func(context.Context) error {
				mem.Close()
				return nil
			}))
			store = mem
		}
		bucket, err := ratelimiter.NewBucket(store, limitCfg)
		if err != nil {
			return err
		}
		opts.AuthLimiter = ratelimiter.Middleware(bucket, ratelimiter.ByClientIP,
			ratelimiter.WithMiddlewareLogger(log),
			ratelimiter.WithScope("auth"),
		)
	}

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		clientip.Middleware(httpCfg.TrustProxyHeaders),
		middleware.Recoverer,
		accessLog(log),
	)
	r.Get("/livez", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, 3*time.Second, checks...))
	r.Mount(app.APIPrefix, account.Router(opts))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"not found"}`)
	})

	srv := httpserver.NewFromConfig(httpCfg, append(hooks,
		httpserver.WithLogger(log),
		httpserver.WithBackground("scheduler", jobs.Start),
	)...)

	log.InfoContext(ctx, "starting authcore",
		logger.Component("serve"),
		slog.String("addr", httpCfg.Addr),
		slog.String("driver", app.StorageDriver),
		slog.Bool("google_keep", app.GoogleKeepEnabled),
	)
	serving = true
	return srv.Run(ctx, r)
}
