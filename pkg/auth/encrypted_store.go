package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"musinsacrawler/pkg/storage"
)

// PassphraseEnv overrides the generated passphrase file
const PassphraseEnv = "MUSINSA_CRAWLER_PASSPHRASE"

const (
	vaultVersion = 2
	saltSize     = 32
	keySize      = 32
	// kdfIterations applies to newly written vaults; existing files keep
	// the count they were sealed with
	kdfIterations = 210000
)

// vaultAAD binds the ciphertext to this file format
var vaultAAD = []byte("musinsa-crawler/credentials/v2")

// ErrVaultSealed means the vault exists but the passphrase does not open it
var ErrVaultSealed = errors.New("credential vault cannot be opened with this passphrase")

// vaultFile is the on-disk envelope. Only Sealed carries account data.
type vaultFile struct {
	Version    int       `json:"version"`
	Salt       string    `json:"salt"`
	Iterations int       `json:"iterations"`
	Sealed     string    `json:"sealed"`
	Modified   time.Time `json:"modified"`
}

// vault is an opened vaultFile
type vault struct {
	salt       []byte
	iterations int
	accounts   map[string]Account
}

// EncryptedFileStore keeps accounts in an AES-GCM sealed file whose key is
// derived from a passphrase with PBKDF2
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// NewEncryptedFileStore opens the vault at path, taking the passphrase from
// PassphraseEnv or a .passphrase file beside it
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	passphrase, err := loadPassphrase(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return NewEncryptedFileStoreWithPassphrase(path, passphrase), nil
}

// NewEncryptedFileStoreWithPassphrase opens the vault at path with passphrase
func NewEncryptedFileStoreWithPassphrase(path, passphrase string) *EncryptedFileStore {
	return &EncryptedFileStore{path: path, passphrase: passphrase}
}

// Store adds or replaces an account
func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(accounts map[string]Account) error {
		accounts[account.Username] = *account
		return nil
	})
}

// Retrieve returns the account for username
func (e *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	v, err := e.read()
	if err != nil {
		return nil, err
	}
	account, ok := v.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns every account ordered by username
func (e *EncryptedFileStore) List() ([]*Account, error) {
	v, err := e.read()
	if errors.Is(err, ErrCredentialsNotFound) {
		return []*Account{}, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(v.accounts))
	for name := range v.accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	accounts := make([]*Account, 0, len(names))
	for _, name := range names {
		account := v.accounts[name]
		accounts = append(accounts, &account)
	}
	return accounts, nil
}

// Delete removes username. The file goes away with the last account.
func (e *EncryptedFileStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(accounts map[string]Account) error {
		if _, ok := accounts[username]; !ok {
			return ErrCredentialsNotFound
		}
		delete(accounts, username)
		return nil
	})
}

// Exists reports whether username is stored
func (e *EncryptedFileStore) Exists(username string) bool {
	account, err := e.Retrieve(username)
	return err == nil && account != nil
}

// read opens the vault. A missing file is ErrCredentialsNotFound.
func (e *EncryptedFileStore) read() (*vault, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.open()
}

// update opens the vault (or starts an empty one), applies fn and seals the
// result back atomically
func (e *EncryptedFileStore) update(fn func(map[string]Account) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.open()
	if errors.Is(err, ErrCredentialsNotFound) {
		v, err = newVault()
	}
	if err != nil {
		return err
	}

	if err := fn(v.accounts); err != nil {
		return err
	}
	if len(v.accounts) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credential vault: %w", err)
		}
		return nil
	}
	return e.seal(v)
}

func newVault() (*vault, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return &vault{salt: salt, iterations: kdfIterations, accounts: make(map[string]Account)}, nil
}

func (e *EncryptedFileStore) open() (*vault, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential vault: %w", err)
	}

	var file vaultFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credential vault: %w", err)
	}
	if file.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported credential vault version %d", file.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(file.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vault: %w", err)
	}

	plain, err := openGCM(e.key(salt, file.Iterations), sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultSealed, err)
	}

	var accounts []Account
	if err := json.Unmarshal(plain, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts: %w", err)
	}

	v := &vault{salt: salt, iterations: file.Iterations, accounts: make(map[string]Account, len(accounts))}
	for _, account := range accounts {
		v.accounts[account.Username] = account
	}
	return v, nil
}

func (e *EncryptedFileStore) seal(v *vault) error {
	accounts := make([]Account, 0, len(v.accounts))
	for _, account := range v.accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })

	plain, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}
	sealed, err := sealGCM(e.key(v.salt, v.iterations), plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt accounts: %w", err)
	}

	content, err := json.MarshalIndent(vaultFile{
		Version:    vaultVersion,
		Salt:       base64.StdEncoding.EncodeToString(v.salt),
		Iterations: v.iterations,
		Sealed:     base64.StdEncoding.EncodeToString(sealed),
		Modified:   time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential vault: %w", err)
	}
	return storage.WriteFileAtomic(e.path, content, 0600)
}

func (e *EncryptedFileStore) key(salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

// loadPassphrase reads the passphrase from the environment or from a
// .passphrase file in dir, creating one on first use
func loadPassphrase(dir string) (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}

	path := filepath.Join(dir, ".passphrase")
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(raw)
	if err := storage.WriteFileAtomic(path, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

// sealGCM returns nonce || ciphertext
func sealGCM(key, plain []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, vaultAAD), nil
}

func openGCM(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, vaultAAD)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
