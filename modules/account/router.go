package account

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/svc/auth"
	"github.com/dmitrymomot/authcore/svc/integration"
)

// RouterOptions wires services into the HTTP API. Accounts and Gate are
// required; the Google Keep routes are mounted only when Coordinator and
// Vault are both set.
type RouterOptions struct {
	Accounts    *auth.AccountService
	Gate        *auth.Gate
	Coordinator *integration.Coordinator
	Vault       *integration.Vault
	Keep        *integration.KeepClient
	// AuthLimiter, if set, wraps the unauthenticated /auth endpoints.
	AuthLimiter func(http.Handler) http.Handler
	Logger      *slog.Logger
}

// Router builds the account API.
//
//	r := chi.NewRouter()
//	r.Mount("/api/v1", account.Router(account.RouterOptions{
//		Accounts: accounts,
//		Gate:     gate,
//	}))
func Router(opts RouterOptions) chi.Router {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	authn := auth.Authenticate(opts.Gate, auth.WithMiddlewareLogger(log))

	a := &authHandlers{accounts: opts.Accounts, log: log}
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		if opts.AuthLimiter != nil {
			r.Use(opts.AuthLimiter)
		}
		r.Post("/verify-email", wrap(log, bindJSON[verifyEmailRequest], a.verifyEmail))
		r.Post("/verify-email-otp", wrap(log, bindJSON[verifyOTPRequest], a.verifyOTP))
		r.Post("/register", wrap(log, bindJSON[registerRequest], a.register))
		r.Post("/login", wrap(log, bindJSON[loginRequest], a.login))
		r.Post("/token", wrap(log, bindPasswordGrant, a.token))
		r.Post("/refresh", wrap(log, bindJSON[refreshRequest], a.refresh))
	})

	r.With(authn).Get("/users/me", wrap[struct{}](log, nil, a.me))

	if opts.Coordinator != nil && opts.Vault != nil {
		k := &keepHandlers{coordinator: opts.Coordinator, vault: opts.Vault, keep: opts.Keep}
		r.Route("/google-keep", func(r chi.Router) {
			r.Post("/auth/callback", wrap(log, bindJSON[callbackRequest], k.callback))

			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Post("/auth/google-keep", wrap[struct{}](log, nil, k.begin))
				r.Get("/auth/status", wrap[struct{}](log, nil, k.status))
				r.Delete("/auth", wrap[struct{}](log, nil, k.disconnect))
				if opts.Keep != nil {
					r.Post("/notes", wrap(log, bindJSON[createNoteRequest], k.createNote))
				}
			})
		})
	}

	r.With(authn, auth.RequireRoles(auth.RoleAdmin)).
		Get("/admin/ping", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, envelope{Message: "pong"})
		})

	return r
}
