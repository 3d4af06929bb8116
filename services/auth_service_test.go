package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/upb/coffee-main-api/models"
	"github.com/upb/coffee-main-api/repositories"
)

type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) Resolve(ctx context.Context, username string) (*models.Account, error) {
	args := m.Called(ctx, username)
	if account := args.Get(0); account != nil {
		return account.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(subject string, roles []string) (*models.AccessToken, error) {
	args := m.Called(subject, roles)
	if token := args.Get(0); token != nil {
		return token.(*models.AccessToken), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockLoginAuditor struct {
	mock.Mock
}

func (m *MockLoginAuditor) LogLoginSucceeded(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *MockLoginAuditor) LogLoginFailed(ctx context.Context, username, reason string) error {
	return m.Called(ctx, username, reason).Error(0)
}

func (m *MockLoginAuditor) LogLoginBlocked(ctx context.Context, username, reason string) error {
	return m.Called(ctx, username, reason).Error(0)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func testToken() *models.AccessToken {
	now := time.Now()
	return &models.AccessToken{
		Value:     "header.payload.signature",
		TokenType: models.TokenTypeBearer,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

type authFixture struct {
	store   *MockCredentialStore
	issuer  *MockTokenIssuer
	auditor *MockLoginAuditor
	service *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		store:   new(MockCredentialStore),
		issuer:  new(MockTokenIssuer),
		auditor: new(MockLoginAuditor),
	}
	f.service = NewAuthService(f.store, f.issuer, f.auditor, time.Second, bcrypt.MinCost, zap.NewNop())
	return f
}

func (f *authFixture) assertExpectations(t *testing.T) {
	f.store.AssertExpectations(t)
	f.issuer.AssertExpectations(t)
	f.auditor.AssertExpectations(t)
}

func TestAuthService_Login_Success(t *testing.T) {
	f := newAuthFixture(t)
	account := models.NewAccount("testuser", mustHash(t, "password"), models.RoleUser)
	token := testToken()

	f.store.On("Resolve", mock.Anything, "testuser").Return(account, nil)
	f.issuer.On("Issue", "testuser", []string{models.RoleUser}).Return(token, nil)
	f.auditor.On("LogLoginSucceeded", mock.Anything, "testuser").Return(nil)

	got, err := f.service.Login(context.Background(), "testuser", "password")
	require.NoError(t, err)
	assert.Equal(t, token, got)
	f.assertExpectations(t)
}

func TestAuthService_Login_LookupHasDeadline(t *testing.T) {
	f := newAuthFixture(t)
	account := models.NewAccount("testuser", mustHash(t, "password"), models.RoleUser)

	f.store.On("Resolve", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= time.Second
	}), "testuser").Return(account, nil)
	f.issuer.On("Issue", "testuser", mock.Anything).Return(testToken(), nil)
	f.auditor.On("LogLoginSucceeded", mock.Anything, "testuser").Return(nil)

	_, err := f.service.Login(context.Background(), "testuser", "password")
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestAuthService_Login_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "empty username", username: "", password: "password"},
		{name: "empty password", username: "testuser", password: ""},
		{name: "both empty", username: "", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)

			token, err := f.service.Login(context.Background(), tt.username, tt.password)
			require.Error(t, err)
			assert.Nil(t, token)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, "Username or password must not be empty", PublicMessage(err))

			f.store.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
			f.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
		})
	}
}

func TestAuthService_Login_UnknownUserEqualsWrongPassword(t *testing.T) {
	hash := mustHash(t, "password")

	unknown := newAuthFixture(t)
	unknown.store.On("Resolve", mock.Anything, "ghost").Return(nil, repositories.ErrNotFound)
	unknown.auditor.On("LogLoginFailed", mock.Anything, "ghost", ReasonUnknownUser).Return(nil)

	_, unknownErr := unknown.service.Login(context.Background(), "ghost", "password")

	wrong := newAuthFixture(t)
	wrong.store.On("Resolve", mock.Anything, "testuser").Return(models.NewAccount("testuser", hash, models.RoleUser), nil)
	wrong.auditor.On("LogLoginFailed", mock.Anything, "testuser", ReasonBadPassword).Return(nil)

	_, wrongErr := wrong.service.Login(context.Background(), "testuser", "wrongpassword")

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.ErrorIs(t, unknownErr, ErrAuthenticationFailed)
	assert.ErrorIs(t, wrongErr, ErrAuthenticationFailed)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	assert.Equal(t, PublicMessage(unknownErr), PublicMessage(wrongErr))
	assert.Equal(t, "Invalid username or password", PublicMessage(wrongErr))

	unknown.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
	wrong.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
	unknown.assertExpectations(t)
	wrong.assertExpectations(t)
}

func TestAuthService_Login_BlockedAccounts(t *testing.T) {
	hash := mustHash(t, "password")

	tests := []struct {
		name     string
		mutate   func(*models.Account)
		password string
		wantErr  error
		notErr   error
		reason   string
	}{
		{
			name:     "disabled",
			mutate:   func(a *models.Account) { a.Enabled = false },
			password: "password",
			wantErr:  ErrAccountDisabled,
			notErr:   ErrAccountLocked,
			reason:   ReasonDisabled,
		},
		{
			name:     "locked",
			mutate:   func(a *models.Account) { a.Locked = true },
			password: "password",
			wantErr:  ErrAccountLocked,
			notErr:   ErrAccountDisabled,
			reason:   ReasonLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			account := models.NewAccount("testuser", hash, models.RoleUser)
			tt.mutate(account)

			f.store.On("Resolve", mock.Anything, "testuser").Return(account, nil)
			f.auditor.On("LogLoginBlocked", mock.Anything, "testuser", tt.reason).Return(nil)

			token, err := f.service.Login(context.Background(), "testuser", tt.password)
			assert.Nil(t, token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotErrorIs(t, err, tt.notErr)
			assert.True(t, IsForbiddenError(err))
			f.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
			f.assertExpectations(t)
		})
	}

	t.Run("blocked account with wrong password looks like bad credentials", func(t *testing.T) {
		f := newAuthFixture(t)
		account := models.NewAccount("testuser", hash, models.RoleUser)
		account.Locked = true

		f.store.On("Resolve", mock.Anything, "testuser").Return(account, nil)
		f.auditor.On("LogLoginFailed", mock.Anything, "testuser", ReasonBadPassword).Return(nil)

		_, err := f.service.Login(context.Background(), "testuser", "wrongpassword")
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.False(t, IsForbiddenError(err))
	})
}

func TestAuthService_Login_StoreErrors(t *testing.T) {
	t.Run("store failure is internal", func(t *testing.T) {
		f := newAuthFixture(t)
		f.store.On("Resolve", mock.Anything, "testuser").Return(nil, errors.New("connection refused"))

		_, err := f.service.Login(context.Background(), "testuser", "password")
		require.Error(t, err)
		assert.True(t, IsInternalError(err))
		assert.False(t, IsAuthenticationError(err))
		assert.NotContains(t, PublicMessage(err), "connection refused")
		f.auditor.AssertNotCalled(t, "LogLoginFailed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lookup timeout is internal", func(t *testing.T) {
		store := new(MockCredentialStore)
		store.On("Resolve", mock.Anything, "testuser").
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return(nil, context.DeadlineExceeded)

		service := NewAuthService(store, new(MockTokenIssuer), nil, 10*time.Millisecond, bcrypt.MinCost, zap.NewNop())

		_, err := service.Login(context.Background(), "testuser", "password")
		require.Error(t, err)
		assert.True(t, IsInternalError(err))
		assert.Equal(t, "credential lookup timed out", PublicMessage(err))
	})

	t.Run("malformed stored hash is internal", func(t *testing.T) {
		f := newAuthFixture(t)
		f.store.On("Resolve", mock.Anything, "testuser").
			Return(models.NewAccount("testuser", "not-a-bcrypt-hash", models.RoleUser), nil)

		_, err := f.service.Login(context.Background(), "testuser", "password")
		require.Error(t, err)
		assert.True(t, IsInternalError(err))
	})
}

func TestAuthService_Login_IssueFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.store.On("Resolve", mock.Anything, "testuser").
		Return(models.NewAccount("testuser", mustHash(t, "password"), models.RoleUser), nil)
	f.issuer.On("Issue", "testuser", []string{models.RoleUser}).Return(nil, errors.New("signing failed"))

	token, err := f.service.Login(context.Background(), "testuser", "password")
	assert.Nil(t, token)
	require.Error(t, err)
	assert.True(t, IsInternalError(err))
	f.auditor.AssertNotCalled(t, "LogLoginSucceeded", mock.Anything, mock.Anything)
}

func TestAuthService_Login_AuditFailureDoesNotFailLogin(t *testing.T) {
	f := newAuthFixture(t)
	f.store.On("Resolve", mock.Anything, "testuser").
		Return(models.NewAccount("testuser", mustHash(t, "password"), models.RoleUser), nil)
	f.issuer.On("Issue", "testuser", mock.Anything).Return(testToken(), nil)
	f.auditor.On("LogLoginSucceeded", mock.Anything, "testuser").Return(errors.New("audit event buffer full"))

	token, err := f.service.Login(context.Background(), "testuser", "password")
	require.NoError(t, err)
	assert.NotNil(t, token)
}

func TestNewAuthService_DummyHashCost(t *testing.T) {
	tests := []struct {
		name     string
		hashCost int
		want     int
	}{
		{name: "configured cost", hashCost: bcrypt.MinCost + 1, want: bcrypt.MinCost + 1},
		{name: "zero selects default", hashCost: 0, want: bcrypt.DefaultCost},
		{name: "out of range selects default", hashCost: bcrypt.MaxCost + 1, want: bcrypt.DefaultCost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockCredentialStore)
			service := NewAuthService(store, new(MockTokenIssuer), nil, time.Second, tt.hashCost, zap.NewNop())

			// Built up front, not on the first unknown-user login
			require.NotEmpty(t, service.dummyHash)
			cost, err := bcrypt.Cost(service.dummyHash)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cost)
			store.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
		})
	}
}

func TestHashPassword(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		hash, err := HashPassword("password", bcrypt.MinCost)
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("password")))
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := HashPassword("", bcrypt.MinCost)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("too long", func(t *testing.T) {
		_, err := HashPassword(strings.Repeat("x", MaxPasswordLength+1), bcrypt.MinCost)
		assert.True(t, IsValidationError(err))
	})

	t.Run("cost out of range", func(t *testing.T) {
		_, err := HashPassword("password", bcrypt.MaxCost+1)
		assert.True(t, IsValidationError(err))
	})
}
