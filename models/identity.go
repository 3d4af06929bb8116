package models

// Role names used by the seeded accounts.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Identity is the verified username plus role set attached to a request.
type Identity struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// NewIdentity creates an Identity with a deduplicated copy of roles.
func NewIdentity(username string, roles []string) *Identity {
	return &Identity{
		Username: username,
		Roles:    normalizeRoles(roles),
	}
}

// HasRole returns true if the identity carries the given role
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Account is a stored credential as resolved by a credential store.
// PasswordHash never leaves the authentication subsystem.
type Account struct {
	Identity
	PasswordHash string `json:"-" db:"password_hash"`
	Enabled      bool   `json:"enabled" db:"enabled"`
	Locked       bool   `json:"locked" db:"locked"`
}

// NewAccount creates an enabled, unlocked account
func NewAccount(username, passwordHash string, roles ...string) *Account {
	return &Account{
		Identity:     *NewIdentity(username, roles),
		PasswordHash: passwordHash,
		Enabled:      true,
	}
}

// TableName returns the table name for the Account model
func (Account) TableName() string {
	return "credentials"
}

// ToIdentity returns the public part of the account
func (a *Account) ToIdentity() *Identity {
	return NewIdentity(a.Username, a.Roles)
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
