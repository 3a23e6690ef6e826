package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/sanitizer"
	"github.com/dmitrymomot/authcore/pkg/validator"
)

const (
	minPasswordLength = 8
	maxPasswordBytes  = 72
	maxNameLength     = 100
)

// PasswordHasher is satisfied by *password.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}

// RegisterInput is a self-service sign-up request.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Code      string
}

// SuperuserInput creates an administrator outside the OTP flow.
type SuperuserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AccountService implements registration, login, and token refresh.
type AccountService struct {
	identities IdentityStorage
	challenges *ChallengeService
	hasher     PasswordHasher
	tokens     *TokenService
	notifier   ChallengeNotifier
	logger     *slog.Logger
	now        func() time.Time

	afterRegister func(ctx context.Context, identity *Identity) error

	decoyOnce   sync.Once
	decoyDigest string
}

// decoyPlaintext is hashed once per service so unknown emails pay the same
// bcrypt cost as known ones.
const decoyPlaintext = "authcore-login-decoy"

type AccountOption func(*AccountService)

// WithAccountLogger sets the logger. Nil is ignored.
func WithAccountLogger(l *slog.Logger) AccountOption {
	return func(s *AccountService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAccountClock overrides the time source used for challenge checks.
func WithAccountClock(now func() time.Time) AccountOption {
	return func(s *AccountService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAfterRegister sets a hook that runs asynchronously after a successful
// registration.
func WithAfterRegister(fn func(context.Context, *Identity) error) AccountOption {
	return func(s *AccountService) {
		s.afterRegister = fn
	}
}

// NewAccountService wires the account flows. All collaborators are required.
func NewAccountService(
	identities IdentityStorage,
	challenges *ChallengeService,
	hasher PasswordHasher,
	tokens *TokenService,
	notifier ChallengeNotifier,
	opts ...AccountOption,
) *AccountService {
	s := &AccountService{
		identities: identities,
		challenges: challenges,
		hasher:     hasher,
		tokens:     tokens,
		notifier:   notifier,
		logger:     logger.Discard(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestEmailVerification issues a challenge for an address that does not
// belong to an active account and hands it to the notifier.
func (s *AccountService) RequestEmailVerification(ctx context.Context, email, firstName string) error {
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(validator.ValidEmail("email", email)); err != nil {
		return err
	}
	if err := s.ensureNotRegistered(ctx, email); err != nil {
		return err
	}

	challenge, err := s.challenges.Issue(ctx, email)
	if err != nil {
		return err
	}

	if err := s.notifier.NotifyChallenge(ctx, ChallengeNotice{
		Email:     email,
		FirstName: sanitizer.NormalizeWhitespace(firstName),
		Code:      challenge.Code,
		ExpiresIn: s.challenges.TTL(),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to deliver verification code",
			logger.Component("account"),
			logger.Email(sanitizer.MaskEmail(email)),
			logger.Error(err),
		)
		return fmt.Errorf("deliver verification code: %w", err)
	}
	return nil
}

// ConfirmEmail checks a code without consuming it, so the client can
// proceed to the registration form.
func (s *AccountService) ConfirmEmail(ctx context.Context, email, code string) error {
	email = sanitizer.NormalizeEmail(email)
	if err := s.ensureNotRegistered(ctx, email); err != nil {
		return err
	}
	return s.challenges.Verify(ctx, email, code)
}

// Register creates an active user account, or reactivates an inactive one,
// after the email challenge is verified. The challenge is discarded on
// success.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*Identity, error) {
	in.Email = sanitizer.NormalizeEmail(in.Email)
	in.FirstName = sanitizer.NormalizeWhitespace(in.FirstName)
	in.LastName = sanitizer.NormalizeWhitespace(in.LastName)

	if err := validator.Apply(
		validator.ValidEmail("email", in.Email),
		validator.MinLenString("password", in.Password, minPasswordLength),
		validator.MaxBytesString("password", in.Password, maxPasswordBytes),
		validator.RequiredString("first_name", in.FirstName),
		validator.MaxLenString("first_name", in.FirstName, maxNameLength),
		validator.MaxLenString("last_name", in.LastName, maxNameLength),
		validator.ValidDigits("code", in.Code, s.challenges.codeLength),
	); err != nil {
		return nil, err
	}

	existing, err := s.identities.GetIdentityByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, ErrIdentityNotFound) {
		return nil, fmt.Errorf("check existing identity: %w", err)
	}
	if existing != nil && existing.CanAuthenticate() {
		return nil, ErrAccountAlreadyExists
	}

	if err := s.challenges.Verify(ctx, in.Email, in.Code); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var identity *Identity
	if existing == nil {
		identity, err = s.identities.CreateIdentity(ctx, &Identity{
			Email:        in.Email,
			PasswordHash: hash,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Role:         RoleUser,
			IsActive:     true,
		})
		if err != nil {
			return nil, fmt.Errorf("create identity: %w", err)
		}
	} else {
		existing.PasswordHash = hash
		existing.FirstName = in.FirstName
		existing.LastName = in.LastName
		existing.IsActive = true
		existing.IsDeleted = false
		existing.UpdatedAt = s.now().UTC()
		if err := s.identities.UpdateIdentity(ctx, existing); err != nil {
			return nil, fmt.Errorf("reactivate identity: %w", err)
		}
		identity = existing
	}

	if err := s.challenges.Discard(ctx, in.Email); err != nil {
		s.logger.WarnContext(ctx, "failed to discard used challenge",
			logger.Component("account"),
			logger.IdentityID(identity.ID),
			logger.Error(err),
		)
	}

	s.logger.InfoContext(ctx, "identity registered",
		logger.Component("account"),
		logger.IdentityID(identity.ID),
	)
	s.runAfterRegister(ctx, identity)
	return identity, nil
}

// Login checks email and password and issues a token pair. Unknown emails
// and wrong passwords are indistinguishable. There is no lockout.
func (s *AccountService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = sanitizer.NormalizeEmail(email)
	if password == "" || len(password) > maxPasswordBytes {
		return nil, ErrInvalidCredentials
	}

	identity, err := s.identities.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			s.verifyDecoy(ctx, password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load identity: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, password, identity.PasswordHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "password verification failed",
			logger.Component("account"),
			logger.IdentityID(identity.ID),
			logger.Error(err),
		)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !identity.CanAuthenticate() {
		return nil, ErrAccountInactive
	}

	return s.tokens.IssuePair(identity.ID)
}

// verifyDecoy runs a verification that always fails against a digest with
// the configured cost.
func (s *AccountService) verifyDecoy(ctx context.Context, password string) {
	s.decoyOnce.Do(func() {
		digest, err := s.hasher.Hash(ctx, decoyPlaintext)
		if err != nil {
			s.logger.WarnContext(ctx, "decoy digest unavailable",
				logger.Component("account"),
				logger.Error(err),
			)
			return
		}
		s.decoyDigest = digest
	})
	if s.decoyDigest == "" {
		return
	}
	_, _ = s.hasher.Verify(ctx, password, s.decoyDigest)
}

// Refresh exchanges a refresh token for a new pair.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	subjectID, err := s.tokens.Verify(refreshToken, RefreshToken)
	if err != nil {
		return nil, err
	}

	identity, err := s.identities.GetIdentityByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if !identity.CanAuthenticate() {
		return nil, ErrAccountInactive
	}

	return s.tokens.IssuePair(identity.ID)
}

// CreateSuperuser creates an active administrator without an OTP.
func (s *AccountService) CreateSuperuser(ctx context.Context, in SuperuserInput) (*Identity, error) {
	in.Email = sanitizer.NormalizeEmail(in.Email)
	in.FirstName = sanitizer.NormalizeWhitespace(in.FirstName)
	in.LastName = sanitizer.NormalizeWhitespace(in.LastName)

	if err := validator.Apply(
		validator.ValidEmail("email", in.Email),
		validator.MinLenString("password", in.Password, minPasswordLength),
		validator.MaxBytesString("password", in.Password, maxPasswordBytes),
		validator.MaxLenString("first_name", in.FirstName, maxNameLength),
		validator.MaxLenString("last_name", in.LastName, maxNameLength),
	); err != nil {
		return nil, err
	}

	existing, err := s.identities.GetIdentityByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, ErrIdentityNotFound) {
		return nil, fmt.Errorf("check existing identity: %w", err)
	}
	if existing != nil && existing.CanAuthenticate() {
		return nil, ErrAccountAlreadyExists
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	identity := &Identity{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         RoleAdmin,
		IsActive:     true,
		IsSuperuser:  true,
	}
	if existing == nil {
		identity, err = s.identities.CreateIdentity(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("create superuser: %w", err)
		}
	} else {
		identity.ID = existing.ID
		identity.CreatedAt = existing.CreatedAt
		identity.UpdatedAt = s.now().UTC()
		if err := s.identities.UpdateIdentity(ctx, identity); err != nil {
			return nil, fmt.Errorf("promote identity: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "superuser created",
		logger.Component("account"),
		logger.IdentityID(identity.ID),
	)
	return identity, nil
}

func (s *AccountService) ensureNotRegistered(ctx context.Context, email string) error {
	identity, err := s.identities.GetIdentityByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrIdentityNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("check existing identity: %w", err)
	case identity.CanAuthenticate():
		return ErrAccountAlreadyExists
	default:
		return nil
	}
}

func (s *AccountService) runAfterRegister(ctx context.Context, identity *Identity) {
	if s.afterRegister == nil {
		return
	}
	hookCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("afterRegister hook panicked",
					logger.Component("account"),
					logger.IdentityID(identity.ID),
					slog.Any("panic", r),
				)
			}
		}()
		ctx, cancel := context.WithTimeout(hookCtx, 10*time.Second)
		defer cancel()
		if err := s.afterRegister(ctx, identity); err != nil {
			s.logger.ErrorContext(ctx, "afterRegister hook failed",
				logger.Component("account"),
				logger.IdentityID(identity.ID),
				logger.Error(err),
			)
		}
	}()
}
