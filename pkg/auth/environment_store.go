package auth

import (
	"os"
	"time"
)

// EnvUsername and EnvPassword hold credentials supplied by the environment
// or a .env file
const (
	EnvUsername = "MUSINSA_ID"
	EnvPassword = "MUSINSA_PASSWORD"
)

// EnvironmentStore exposes MUSINSA_ID / MUSINSA_PASSWORD as a read-only
// store holding at most one account
type EnvironmentStore struct {
	lookup func(string) string
}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{lookup: os.Getenv}
}

func (e *EnvironmentStore) account() (*Account, bool) {
	id, password := e.lookup(EnvUsername), e.lookup(EnvPassword)
	if id == "" || password == "" {
		return nil, false
	}
	return &Account{Username: id, Password: password, LastModified: time.Now()}, true
}

// Store always fails; the environment is not writable from here
func (e *EnvironmentStore) Store(*Account) error {
	return ErrStoreUnavailable
}

// Retrieve matches the environment account by name. An empty username
// matches whatever account is set.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	account, ok := e.account()
	if !ok || (username != "" && username != account.Username) {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	if account, ok := e.account(); ok {
		return []*Account{account}, nil
	}
	return []*Account{}, nil
}

// Delete always fails; unset the variables instead
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
