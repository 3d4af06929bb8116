package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/coffee-main-api/models"
	"github.com/upb/coffee-main-api/observability"
	"github.com/upb/coffee-main-api/repositories"
	"github.com/upb/coffee-main-api/services"
	"github.com/upb/coffee-main-api/services/tokens"
	"github.com/upb/coffee-main-api/utils"
)

// Rejection reasons for tokens that verified but name an unusable account
const (
	ReasonUnknownSubject  = "unknown_subject"
	ReasonAccountDisabled = "account_disabled"
	ReasonAccountLocked   = "account_locked"
)

// TokenVerifier verifies bearer tokens
type TokenVerifier interface {
	Verify(token string) (*tokens.VerifiedToken, error)
}

// TokenAuditor records rejected bearer tokens
type TokenAuditor interface {
	LogTokenRejected(ctx context.Context, subject, reason string) error
}

// IdentityFilterConfig configures an IdentityFilter
type IdentityFilterConfig struct {
	// ResolveFromStore re-reads the account on every request. When false the
	// identity is built from the token claims alone.
	ResolveFromStore bool
	LookupTimeout    time.Duration
}

// IdentityFilter attaches the identity carried by a bearer token to the
// request context. It never rejects a request for a bad token; downstream
// handlers decide whether an identity is required.
type IdentityFilter struct {
	verifier         TokenVerifier
	store            repositories.CredentialStore
	auditor          TokenAuditor
	resolveFromStore bool
	lookupTimeout    time.Duration
	logger           *zap.Logger
}

// NewIdentityFilter creates a new IdentityFilter. store may be nil when
// identities are built from claims; auditor may be nil.
func NewIdentityFilter(
	verifier TokenVerifier,
	store repositories.CredentialStore,
	auditor TokenAuditor,
	cfg IdentityFilterConfig,
	logger *zap.Logger,
) (*IdentityFilter, error) {
	if verifier == nil {
		return nil, services.WrapConfiguration("identity filter requires a token verifier", nil)
	}
	if cfg.ResolveFromStore && store == nil {
		return nil, services.WrapConfiguration("identity filter requires a credential store", nil)
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = services.DefaultLookupTimeout
	}
	return &IdentityFilter{
		verifier:         verifier,
		store:            store,
		auditor:          auditor,
		resolveFromStore: cfg.ResolveFromStore,
		lookupTimeout:    cfg.LookupTimeout,
		logger:           logger,
	}, nil
}

// Handler runs the filter once per request. A second pass over the same
// request leaves the context untouched.
func (f *IdentityFilter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if identityFilterApplied(ctx) {
			next.ServeHTTP(w, r)
			return
		}
		ctx = markIdentityFilterApplied(ctx)

		identity, err := f.Authenticate(ctx, r.Header.Get("Authorization"))
		if err != nil {
			observability.IdentityResolutionsTotal.WithLabelValues(observability.IdentityError).Inc()
			f.logger.Error("identity resolution failed",
				zap.String("request_id", GetRequestIDFromContext(ctx)),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return
		}

		if identity == nil {
			ctx = ClearIdentity(ctx)
		} else {
			ctx = WithIdentity(ctx, identity)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate resolves the identity named by an Authorization header value.
// It returns (nil, nil) when the header is absent, not a Bearer credential or
// carries an invalid token. An error is returned only when the credential
// store could not be consulted.
func (f *IdentityFilter) Authenticate(ctx context.Context, authorization string) (*models.Identity, error) {
	token, ok := bearerToken(authorization)
	if !ok {
		observability.IdentityResolutionsTotal.WithLabelValues(observability.IdentityAnonymous).Inc()
		return nil, nil
	}

	verified, err := f.verifier.Verify(token)
	if err != nil {
		f.reject(ctx, "", tokens.RejectionReason(err), err)
		return nil, nil
	}

	if !f.resolveFromStore {
		observability.IdentityResolutionsTotal.WithLabelValues(observability.IdentityResolved).Inc()
		return models.NewIdentity(verified.Subject, verified.Roles), nil
	}

	account, err := f.lookup(ctx, verified.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			f.reject(ctx, verified.Subject, ReasonUnknownSubject, nil)
			return nil, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.WrapInternal("credential lookup timed out", err)
		}
		return nil, services.WrapInternal("credential lookup failed", err)
	}

	switch {
	case !account.Enabled:
		f.reject(ctx, verified.Subject, ReasonAccountDisabled, nil)
		return nil, nil
	case account.Locked:
		f.reject(ctx, verified.Subject, ReasonAccountLocked, nil)
		return nil, nil
	}

	observability.IdentityResolutionsTotal.WithLabelValues(observability.IdentityResolved).Inc()
	return account.ToIdentity(), nil
}

func (f *IdentityFilter) lookup(ctx context.Context, username string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, f.lookupTimeout)
	defer cancel()
	return f.store.Resolve(ctx, username)
}

func (f *IdentityFilter) reject(ctx context.Context, subject, reason string, cause error) {
	observability.IdentityResolutionsTotal.WithLabelValues(observability.IdentityRejected).Inc()
	observability.TokenRejectionsTotal.WithLabelValues(reason).Inc()

	fields := []zap.Field{
		zap.String("request_id", GetRequestIDFromContext(ctx)),
		zap.String("reason", reason),
	}
	if subject != "" {
		fields = append(fields, zap.String("subject", subject))
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	f.logger.Debug("bearer token rejected", fields...)

	if f.auditor == nil {
		return
	}
	if err := f.auditor.LogTokenRejected(ctx, subject, reason); err != nil {
		f.logger.Warn("failed to audit token rejection", zap.Error(err))
	}
}

// bearerToken extracts the credential from a "Bearer <token>" header value.
// The scheme is matched case-insensitively. A Bearer header with an empty
// credential still counts as a bearer token so it is recorded as malformed.
func bearerToken(authorization string) (string, bool) {
	if authorization == "" {
		return "", false
	}

	scheme, credential, found := strings.Cut(authorization, " ")
	if !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	if !found {
		return "", true
	}
	return strings.TrimSpace(credential), true
}
