package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/upb/coffee-main-api/models"
	"github.com/upb/coffee-main-api/repositories"
)

func TestNewDefaultCredentialStore(t *testing.T) {
	t.Run("seeds testuser with default hash", func(t *testing.T) {
		store := NewDefaultCredentialStore("")

		account, err := store.Resolve(context.Background(), "testuser")
		require.NoError(t, err)
		assert.Equal(t, "testuser", account.Username)
		assert.Equal(t, []string{models.RoleUser}, account.Roles)
		assert.Equal(t, DefaultPasswordHash, account.PasswordHash)
		assert.True(t, account.Enabled)
		assert.False(t, account.Locked)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("hash override", func(t *testing.T) {
		store := NewDefaultCredentialStore("$2a$04$override")

		account, err := store.Resolve(context.Background(), "testuser")
		require.NoError(t, err)
		assert.Equal(t, "$2a$04$override", account.PasswordHash)
	})
}

func TestCredentialStore_Resolve(t *testing.T) {
	store, err := NewCredentialStore(
		models.NewAccount("alice", "hash-a", models.RoleUser, models.RoleAdmin),
		models.NewAccount("bob", "hash-b", models.RoleUser),
	)
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		account, err := store.Resolve(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, "hash-a", account.PasswordHash)
		assert.Equal(t, []string{models.RoleUser, models.RoleAdmin}, account.Roles)
	})

	t.Run("not found", func(t *testing.T) {
		account, err := store.Resolve(context.Background(), "carol")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.Nil(t, account)
	})

	t.Run("usernames are case sensitive", func(t *testing.T) {
		_, err := store.Resolve(context.Background(), "Alice")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.Resolve(ctx, "alice")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("returned account is a copy", func(t *testing.T) {
		first, err := store.Resolve(context.Background(), "alice")
		require.NoError(t, err)
		first.Roles[0] = "MUTATED"
		first.Enabled = false

		second, err := store.Resolve(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, second.Roles[0])
		assert.True(t, second.Enabled)
	})
}

func TestNewCredentialStore_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		accounts []*models.Account
	}{
		{name: "nil account", accounts: []*models.Account{nil}},
		{name: "blank username", accounts: []*models.Account{models.NewAccount("", "hash")}},
		{name: "duplicate", accounts: []*models.Account{
			models.NewAccount("alice", "hash"),
			models.NewAccount("alice", "other"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewCredentialStore(tt.accounts...)
			assert.Error(t, err)
			assert.Nil(t, store)
		})
	}
}

func TestAuthEventRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("newest first with limit", func(t *testing.T) {
		repo := NewAuthEventRepository(10, zap.NewNop())
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.Insert(ctx, models.NewAuthEvent(models.AuthEventLoginFailed, fmt.Sprintf("user-%d", i))))
		}

		events, err := repo.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "user-2", events[0].Username)
		assert.Equal(t, "user-1", events[1].Username)
	})

	t.Run("evicts oldest at capacity", func(t *testing.T) {
		repo := NewAuthEventRepository(2, zap.NewNop())
		for i := 0; i < 5; i++ {
			require.NoError(t, repo.Insert(ctx, models.NewAuthEvent(models.AuthEventLoginSucceeded, fmt.Sprintf("user-%d", i))))
		}

		events, err := repo.ListRecent(ctx, 0)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "user-4", events[0].Username)
		assert.Equal(t, "user-3", events[1].Username)
	})

	t.Run("writes one log line per event", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		repo := NewAuthEventRepository(10, zap.New(core))

		event := models.NewAuthEvent(models.AuthEventTokenRejected, "testuser").
			WithReason("expired").
			WithRequest("req-1", "10.0.0.1", "curl/8.0")
		require.NoError(t, repo.Insert(ctx, event))

		entries := logs.FilterMessage("auth event").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "audit", entries[0].LoggerName)

		fields := entries[0].ContextMap()
		assert.Equal(t, event.ID.String(), fields["event_id"])
		assert.Equal(t, "token_rejected", fields["event_type"])
		assert.Equal(t, "testuser", fields["username"])
		assert.Equal(t, "expired", fields["reason"])
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "10.0.0.1", fields["ip_address"])
	})

	t.Run("cancelled context is not logged", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		repo := NewAuthEventRepository(10, zap.New(core))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := repo.Insert(cancelled, models.NewAuthEvent(models.AuthEventLoginFailed, "testuser"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, logs.Len())
	})

	t.Run("concurrent inserts", func(t *testing.T) {
		repo := NewAuthEventRepository(0, nil)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = repo.Insert(ctx, models.NewAuthEvent(models.AuthEventTokenRejected, fmt.Sprintf("user-%d", i)))
			}(i)
		}
		wg.Wait()

		events, err := repo.ListRecent(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, events, 50)
	})
}
