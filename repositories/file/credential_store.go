package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/upb/coffee-main-api/models"
	"github.com/upb/coffee-main-api/repositories"
)

// document is the on-disk layout of a credentials file:
//
//	users:
//	  - username: testuser
//	    password_hash: $2a$10$...
//	    roles: [USER]
//	    disabled: false
//	    locked: false
type document struct {
	Users []userEntry `yaml:"users"`
}

type userEntry struct {
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	Roles        []string `yaml:"roles"`
	Disabled     bool     `yaml:"disabled"`
	Locked       bool     `yaml:"locked"`
}

// CredentialStore serves accounts loaded from a YAML file at startup.
// The file is read once; later edits require a restart.
type CredentialStore struct {
	accounts map[string]models.Account
	path     string
}

// Load reads the credentials file at path
func Load(path string, logger *zap.Logger) (*CredentialStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}

	store, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("credentials file %s: %w", path, err)
	}
	store.path = path

	logger.Info("credential file loaded",
		zap.String("path", path),
		zap.Int("accounts", len(store.accounts)))

	return store, nil
}

// Parse decodes a credentials document from r
func Parse(r io.Reader) (*CredentialStore, error) {
	var doc document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	accounts := make(map[string]models.Account, len(doc.Users))
	for i, entry := range doc.Users {
		username := strings.TrimSpace(entry.Username)
		if username == "" {
			return nil, fmt.Errorf("users[%d]: username must not be blank", i)
		}
		if username != entry.Username {
			return nil, fmt.Errorf("users[%d]: username %q has surrounding whitespace", i, entry.Username)
		}
		if strings.TrimSpace(entry.PasswordHash) == "" {
			return nil, fmt.Errorf("users[%d] (%s): password_hash must not be blank", i, username)
		}
		if _, exists := accounts[username]; exists {
			return nil, fmt.Errorf("users[%d]: duplicate username %s", i, username)
		}

		account := models.NewAccount(username, entry.PasswordHash, entry.Roles...)
		account.Enabled = !entry.Disabled
		account.Locked = entry.Locked
		accounts[username] = *account
	}

	return &CredentialStore{accounts: accounts}, nil
}

// Resolve returns a copy of the account for username
func (s *CredentialStore) Resolve(ctx context.Context, username string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	account, ok := s.accounts[username]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	account.Roles = append([]string(nil), account.Roles...)
	return &account, nil
}

// Len returns the number of loaded accounts
func (s *CredentialStore) Len() int {
	return len(s.accounts)
}

// Path returns the file the store was loaded from, if any
func (s *CredentialStore) Path() string {
	return s.path
}
