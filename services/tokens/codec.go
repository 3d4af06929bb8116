package tokens

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/upb/coffee-main-api/models"
	"github.com/upb/coffee-main-api/services"
)

// Rejection reasons reported by RejectionReason. They are meant for logs,
// metrics and audit records only; clients always see ErrInvalidToken.
const (
	ReasonMalformed        = "malformed"
	ReasonSignatureInvalid = "signature_invalid"
	ReasonExpired          = "expired"
	ReasonClaimsInvalid    = "claims_invalid"
)

var errMissingSubject = errors.New("token has no subject")

// Claims is the JWT payload issued by the codec
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// Config configures a Codec
type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// VerifiedToken holds the claims of a token that passed Verify. Values of
// this type are only produced by Codec.Verify.
type VerifiedToken struct {
	ID        string
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec issues and verifies HS256 bearer tokens
type Codec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec creates a codec. A blank secret or a non-positive TTL is a
// configuration error.
func NewCodec(cfg Config) (*Codec, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, services.WrapConfiguration("JWT secret must not be blank", nil)
	}
	if cfg.TTL <= 0 {
		return nil, services.WrapConfiguration(fmt.Sprintf("token TTL must be positive, got %s", cfg.TTL), nil)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Codec{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    now,
		parser: jwt.NewParser(opts...),
	}, nil
}

// TTL returns the lifetime of issued tokens
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subject that expires after the configured TTL
func (c *Codec) Issue(subject string, roles []string) (*models.AccessToken, error) {
	if subject == "" {
		return nil, services.WrapInternal("cannot issue token without subject", nil)
	}

	now := c.now()
	issuedAt := jwt.NewNumericDate(now)
	// NumericDate has whole-second precision; round up so the token never
	// expires before now + ttl.
	expiresAt := jwt.NewNumericDate(ceilSecond(now.Add(c.ttl)))

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
			ID:        uuid.NewString(),
		},
		Roles: roles,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, services.WrapInternal("failed to sign token", err)
	}

	return &models.AccessToken{
		Value:     signed,
		TokenType: models.TokenTypeBearer,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Second)
}

// Verify checks the signature, algorithm and time claims of tokenString.
// Every failure is reported as services.ErrInvalidToken with the cause
// wrapped.
func (c *Codec) Verify(tokenString string) (*VerifiedToken, error) {
	claims := &Claims{}
	token, err := c.parser.ParseWithClaims(tokenString, claims, c.key)
	if err != nil {
		return nil, services.WrapInvalidToken(err)
	}
	if !token.Valid {
		return nil, services.WrapInvalidToken(jwt.ErrTokenInvalidClaims)
	}
	if claims.Subject == "" {
		return nil, services.WrapInvalidToken(errMissingSubject)
	}

	verified := &VerifiedToken{
		ID:      claims.ID,
		Subject: claims.Subject,
		Roles:   append([]string(nil), claims.Roles...),
	}
	if claims.IssuedAt != nil {
		verified.IssuedAt = claims.IssuedAt.UTC()
	}
	if claims.ExpiresAt != nil {
		verified.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return verified, nil
}

// SubjectOf verifies tokenString and returns its subject
func (c *Codec) SubjectOf(tokenString string) (string, error) {
	verified, err := c.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return verified.Subject, nil
}

func (c *Codec) key(_ *jwt.Token) (interface{}, error) {
	return c.secret, nil
}

// RejectionReason classifies an error returned by Verify. It returns an
// empty string for nil.
func RejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonSignatureInvalid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	default:
		return ReasonClaimsInvalid
	}
}
