package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "musinsa-crawler"
	keyringPrefix  = "account_"
	// go-keyring cannot enumerate a service, so Store and Delete keep the
	// known usernames under this entry
	indexKey = "accounts_index"
)

// KeyringStore keeps one JSON entry per account in the OS keychain
type KeyringStore struct{}

// NewKeyringStore writes and removes a throwaway entry and fails when no
// backend is reachable (headless linux without a secret service, CI)
func NewKeyringStore() (*KeyringStore, error) {
	const check = "availability_check"
	if err := keyring.Set(keyringService, check, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, check)
	return &KeyringStore{}, nil
}

func accountKey(username string) string {
	return keyringPrefix + username
}

// keyringGet maps keyring.ErrNotFound to ErrCredentialsNotFound
func keyringGet(key string) (string, error) {
	value, err := keyring.Get(keyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrCredentialsNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring read %s: %w", key, err)
	}
	return value, nil
}

func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := keyring.Set(keyringService, accountKey(account.Username), string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return k.setIndexed(account.Username, true)
}

func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyringGet(accountKey(username))
	if err != nil {
		return nil, err
	}
	account := &Account{}
	if err := json.Unmarshal([]byte(data), account); err != nil {
		return nil, fmt.Errorf("corrupt keyring entry for %s: %w", username, err)
	}
	return account, nil
}

// List skips index entries whose account has since vanished
func (k *KeyringStore) List() ([]*Account, error) {
	names, err := k.index()
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(names))
	for _, name := range names {
		if account, err := k.Retrieve(name); err == nil {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	err := keyring.Delete(keyringService, accountKey(username))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.setIndexed(username, false)
}

func (k *KeyringStore) Exists(username string) bool {
	if username == "" {
		return false
	}
	_, err := keyringGet(accountKey(username))
	return err == nil
}

func (k *KeyringStore) index() ([]string, error) {
	data, err := keyringGet(indexKey)
	if errors.Is(err, ErrCredentialsNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("corrupt keyring index: %w", err)
	}
	return names, nil
}

// setIndexed adds or removes username, keeping insertion order
func (k *KeyringStore) setIndexed(username string, present bool) error {
	names, err := k.index()
	if err != nil {
		return err
	}

	next := names[:0]
	for _, name := range names {
		if name != username {
			next = append(next, name)
		}
	}
	if present {
		next = append(next, username)
	}

	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, indexKey, string(data))
}
