package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"musinsacrawler/pkg/session"
)

const appDirName = "musinsa-crawler"

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// Account is a storefront login
type Account struct {
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`
}

// Validate rejects accounts that cannot sign in
func (a *Account) Validate() error {
	switch {
	case a == nil:
		return fmt.Errorf("%w: no account", ErrInvalidCredentials)
	case a.Username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidCredentials)
	case a.Password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	}
	return nil
}

// Credentials converts the account into what the session controller needs
func (a *Account) Credentials() session.Credentials {
	return session.Credentials{Username: a.Username, Password: a.Password}
}

// CredentialStore is one place accounts can live
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(username string) (*Account, error)
	List() ([]*Account, error)
	Delete(username string) error
	Exists(username string) bool
}

// Manager looks accounts up across stores in priority order. Writes go to
// the first store that accepts them; deletes go to all of them.
type Manager struct {
	stores []CredentialStore
}

// NewManager uses the keychain when available, then the encrypted file in
// the user config directory, then the environment
func NewManager() (*Manager, error) {
	var stores []CredentialStore
	if keyring, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyring)
	}

	dir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	vault, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted store: %w", err)
	}

	stores = append(stores, vault, NewEnvironmentStore())
	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over explicit stores, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store stamps the account and saves it in the first store that accepts it
func (m *Manager) Store(account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	account.LastModified = time.Now()

	var errs []error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("failed to store credentials: %w", errors.Join(errs...))
}

// Retrieve returns username from the first store that has it
func (m *Manager) Retrieve(username string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
}

// RetrieveDefault prefers MUSINSA_ID / MUSINSA_PASSWORD from the environment,
// then the most recently stored account
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	if accounts, _ := m.List(); len(accounts) > 0 {
		return accounts[0], nil
	}
	return nil, ErrCredentialsNotFound
}

// List merges every readable store, keeping the newest copy of each
// account. Most recently modified first, ties by username.
func (m *Manager) List() ([]*Account, error) {
	newest := make(map[string]*Account)
	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if seen, ok := newest[account.Username]; !ok || account.LastModified.After(seen.LastModified) {
				newest[account.Username] = account
			}
		}
	}

	merged := make([]*Account, 0, len(newest))
	for _, account := range newest {
		merged = append(merged, account)
	}
	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return a.Username < b.Username
	})
	return merged, nil
}

// Delete removes username from every store holding it
func (m *Manager) Delete(username string) error {
	var errs []error
	deleted := false
	for _, store := range m.stores {
		err := store.Delete(username)
		if err == nil {
			deleted = true
			continue
		}
		if !errors.Is(err, ErrCredentialsNotFound) {
			errs = append(errs, err)
		}
	}

	switch {
	case deleted:
		return nil
	case len(errs) > 0:
		return fmt.Errorf("failed to delete credentials: %w", errors.Join(errs...))
	default:
		return fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
	}
}

// DeleteAll removes every listed account
func (m *Manager) DeleteAll() error {
	accounts, err := m.List()
	if err != nil {
		return err
	}

	var errs []error
	for _, account := range accounts {
		if err := m.Delete(account.Username); err != nil && !errors.Is(err, ErrCredentialsNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// configDir is <user config dir>/musinsa-crawler, created on demand.
// XDG_CONFIG_HOME is honoured on every platform so tests can redirect it.
func configDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		var err error
		if base, err = os.UserConfigDir(); err != nil {
			return "", err
		}
	}

	dir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// SanitizeAccount returns a copy of the account safe to print
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	return &Account{
		Username:     account.Username,
		Password:     maskString(account.Password),
		LastModified: account.LastModified,
	}
}

// maskString never reveals more than the first and last two characters
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:2] + "..." + s[len(s)-2:]
}
