package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/upb/coffee-main-api/models"
	"github.com/upb/coffee-main-api/observability"
	"github.com/upb/coffee-main-api/repositories"
)

// Internal login failure reasons recorded in the audit trail
const (
	ReasonUnknownUser = "unknown_user"
	ReasonBadPassword = "bad_password"
	ReasonDisabled    = "disabled"
	ReasonLocked      = "locked"
)

// DefaultLookupTimeout bounds a credential store lookup when none is configured
const DefaultLookupTimeout = 3 * time.Second

// TokenIssuer issues signed access tokens
type TokenIssuer interface {
	Issue(subject string, roles []string) (*models.AccessToken, error)
}

// LoginAuditor records login outcomes
type LoginAuditor interface {
	LogLoginSucceeded(ctx context.Context, username string) error
	LogLoginFailed(ctx context.Context, username, reason string) error
	LogLoginBlocked(ctx context.Context, username, reason string) error
}

// AuthService verifies username/password credentials and issues access tokens
type AuthService struct {
	store         repositories.CredentialStore
	issuer        TokenIssuer
	auditor       LoginAuditor
	lookupTimeout time.Duration
	dummyHash     []byte
	logger        *zap.Logger
}

// NewAuthService creates a new AuthService. auditor may be nil. hashCost is
// the bcrypt cost of the stored hashes; zero selects bcrypt.DefaultCost.
func NewAuthService(
	store repositories.CredentialStore,
	issuer TokenIssuer,
	auditor LoginAuditor,
	lookupTimeout time.Duration,
	hashCost int,
	logger *zap.Logger,
) *AuthService {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	if auditor == nil {
		auditor = noopAuditor{}
	}
	return &AuthService{
		store:         store,
		issuer:        issuer,
		auditor:       auditor,
		lookupTimeout: lookupTimeout,
		dummyHash:     newDummyHash(hashCost),
		logger:        logger,
	}
}

// Login authenticates username and password and returns a fresh access token.
//
// Unknown usernames and wrong passwords both yield ErrAuthenticationFailed.
// Disabled or locked accounts are only reported once the password matched.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.AccessToken, error) {
	start := time.Now()
	outcome := observability.OutcomeError
	defer func() {
		observability.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
		observability.LoginDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if username == "" || password == "" {
		outcome = observability.OutcomeInvalidInput
		return nil, ErrInvalidInput
	}

	account, err := s.resolve(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Keep the unknown-user path as slow as a real comparison
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			outcome = observability.OutcomeFailed
			s.fail(ctx, username, ReasonUnknownUser)
			return nil, ErrAuthenticationFailed
		}
		s.logger.Error("credential lookup failed", zap.String("username", username), zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, WrapInternal("credential lookup timed out", err)
		}
		return nil, WrapInternal("credential lookup failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			outcome = observability.OutcomeFailed
			s.fail(ctx, username, ReasonBadPassword)
			return nil, ErrAuthenticationFailed
		}
		s.logger.Error("stored password hash is unusable", zap.String("username", username), zap.Error(err))
		return nil, WrapInternal("stored credential is invalid", err)
	}

	if !account.Enabled {
		outcome = observability.OutcomeBlocked
		s.block(ctx, username, ReasonDisabled)
		return nil, ErrAccountDisabled
	}
	if account.Locked {
		outcome = observability.OutcomeBlocked
		s.block(ctx, username, ReasonLocked)
		return nil, ErrAccountLocked
	}

	token, err := s.issuer.Issue(account.Username, account.Roles)
	if err != nil {
		s.logger.Error("failed to issue token", zap.String("username", username), zap.Error(err))
		return nil, WrapInternal("failed to issue token", err)
	}

	outcome = observability.OutcomeSuccess
	observability.TokensIssuedTotal.Inc()
	if err := s.auditor.LogLoginSucceeded(ctx, account.Username); err != nil {
		s.logger.Warn("failed to audit login", zap.Error(err))
	}
	s.logger.Info("user logged in",
		zap.String("username", account.Username),
		zap.Time("expires_at", token.ExpiresAt))

	return token, nil
}

func (s *AuthService) resolve(ctx context.Context, username string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	return s.store.Resolve(ctx, username)
}

func (s *AuthService) fail(ctx context.Context, username, reason string) {
	s.logger.Debug("login rejected", zap.String("username", username), zap.String("reason", reason))
	if err := s.auditor.LogLoginFailed(ctx, username, reason); err != nil {
		s.logger.Warn("failed to audit login failure", zap.Error(err))
	}
}

func (s *AuthService) block(ctx context.Context, username, reason string) {
	s.logger.Info("login blocked", zap.String("username", username), zap.String("reason", reason))
	if err := s.auditor.LogLoginBlocked(ctx, username, reason); err != nil {
		s.logger.Warn("failed to audit blocked login", zap.Error(err))
	}
}

type noopAuditor struct{}

func (noopAuditor) LogLoginSucceeded(context.Context, string) error       { return nil }
func (noopAuditor) LogLoginFailed(context.Context, string, string) error  { return nil }
func (noopAuditor) LogLoginBlocked(context.Context, string, string) error { return nil }
