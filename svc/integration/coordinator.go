package integration

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/statemachine"
)

// DefaultStateTTL bounds how long a user has to finish the consent screen.
const DefaultStateTTL = 10 * time.Minute

const stateTokenBytes = 32

// HandshakeState is the progress of a single authorization callback.
type HandshakeState string

const (
	StateInitiated        HandshakeState = "initiated"
	StateCallbackReceived HandshakeState = "callback_received"
	StateCompleted        HandshakeState = "completed"
	StateFailed           HandshakeState = "failed"
)

type handshakeEvent string

const (
	eventReceive  handshakeEvent = "receive"
	eventComplete handshakeEvent = "complete"
	eventFail     handshakeEvent = "fail"
)

// Authorization is where the user should be sent to grant access.
type Authorization struct {
	URL       string
	State     string
	ExpiresAt time.Time
}

// Callback carries the query parameters the provider redirected back with.
type Callback struct {
	Code  string
	State string
	Error string
}

// Outcome describes a finished handshake.
type Outcome struct {
	IdentityID int64
	Record     *Record
	State      HandshakeState
}

// AfterCompleteHook runs in the background after credentials are stored.
type AfterCompleteHook func(ctx context.Context, identityID int64) error

// Coordinator runs the authorization-code flow: it issues state tokens,
// validates callbacks, and hands exchanged credentials to the vault.
type Coordinator struct {
	states        StateStore
	provider      Provider
	vault         *Vault
	stateTTL      time.Duration
	now           func() time.Time
	logger        *slog.Logger
	afterComplete AfterCompleteHook
	flow          *statemachine.Definition[HandshakeState, handshakeEvent]
}

type CoordinatorOption func(*Coordinator)

// WithStateTTL bounds how long a handshake may take.
func WithStateTTL(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.stateTTL = d
		}
	}
}

// WithCoordinatorClock overrides the time source.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCoordinatorLogger sets the logger. Nil is ignored.
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAfterComplete registers a hook run after a successful handshake.
// Its failures are logged and never reach the caller.
func WithAfterComplete(hook AfterCompleteHook) CoordinatorOption {
	return func(c *Coordinator) {
		c.afterComplete = hook
	}
}

// NewCoordinator drives handshakes for provider and stores the result in vault.
func NewCoordinator(states StateStore, provider Provider, vault *Vault, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		states:   states,
		provider: provider,
		vault:    vault,
		stateTTL: DefaultStateTTL,
		now:      time.Now,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.flow = statemachine.NewDefinition[HandshakeState, handshakeEvent](StateInitiated).
		Permit(StateInitiated, eventReceive, StateCallbackReceived).
		Permit(StateInitiated, eventFail, StateFailed).
		Permit(StateCallbackReceived, eventComplete, StateCompleted).
		Permit(StateCallbackReceived, eventFail, StateFailed).
		OnTransition(func(ctx context.Context, from, to HandshakeState, event handshakeEvent) {
			c.logger.DebugContext(ctx, "handshake transition",
				logger.Component("oauth"),
				logger.Provider(c.provider.Name()),
				logger.Event(string(event)),
				logger.Transition(string(from), string(to)),
			)
		})
	return c
}

// Begin starts a handshake for identityID.
func (c *Coordinator) Begin(ctx context.Context, identityID int64) (*Authorization, error) {
	state, err := newStateToken()
	if err != nil {
		return nil, err
	}
	if err := c.states.Save(ctx, state, identityID, c.stateTTL); err != nil {
		return nil, fmt.Errorf("begin handshake: %w", err)
	}

	c.logger.InfoContext(ctx, "handshake started",
		logger.Component("oauth"),
		logger.IdentityID(identityID),
		logger.Provider(c.provider.Name()),
	)

	return &Authorization{
		URL:       c.provider.AuthURL(state),
		State:     state,
		ExpiresAt: c.now().Add(c.stateTTL),
	}, nil
}

// Complete handles the provider callback. The state is consumed before
// anything else, so a callback can succeed at most once.
func (c *Coordinator) Complete(ctx context.Context, cb Callback) (*Outcome, error) {
	run := c.flow.Start()
	log := c.logger.With(logger.Component("oauth"), logger.Provider(c.provider.Name()))

	fail := func(identityID int64, err error) (*Outcome, error) {
		_ = run.Fire(ctx, eventFail)
		log.WarnContext(ctx, "handshake failed", logger.IdentityID(identityID), logger.Error(err))
		return &Outcome{IdentityID: identityID, State: run.Current()}, err
	}

	if cb.State == "" {
		return fail(0, ErrStateNotFound)
	}
	identityID, err := c.states.Consume(ctx, cb.State)
	if err != nil {
		return fail(0, err)
	}
	if err := run.Fire(ctx, eventReceive); err != nil {
		return nil, err
	}

	if cb.Error != "" {
		return fail(identityID, fmt.Errorf("%w: %s", ErrProviderDenied, cb.Error))
	}
	if cb.Code == "" {
		return fail(identityID, ErrMissingCode)
	}

	creds, err := c.provider.Exchange(ctx, cb.Code)
	if err != nil {
		if !errors.Is(err, ErrProviderExchangeFailed) {
			err = errors.Join(ErrProviderExchangeFailed, err)
		}
		return fail(identityID, err)
	}

	rec, err := c.vault.Store(ctx, identityID, *creds)
	if err != nil {
		return fail(identityID, err)
	}
	if err := run.Fire(ctx, eventComplete); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "handshake completed", logger.IdentityID(identityID))
	c.runAfterComplete(ctx, identityID)

	return &Outcome{IdentityID: identityID, Record: rec, State: run.Current()}, nil
}

func (c *Coordinator) runAfterComplete(ctx context.Context, identityID int64) {
	if c.afterComplete == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.ErrorContext(ctx, "after-complete hook panicked",
					logger.Component("oauth"),
					slog.Any("panic", r),
				)
			}
		}()

		hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := c.afterComplete(hookCtx, identityID); err != nil {
			c.logger.ErrorContext(hookCtx, "after-complete hook failed",
				logger.Component("oauth"),
				logger.IdentityID(identityID),
				logger.Error(err),
			)
		}
	}()
}

func newStateToken() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// PurgeExpiredHook adapts Vault.PurgeExpired to an AfterCompleteHook.
func PurgeExpiredHook(v *Vault) AfterCompleteHook {
	return func(ctx context.Context, _ int64) error {
		_, err := v.PurgeExpired(ctx)
		return err
	}
}
