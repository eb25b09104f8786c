package secrets

import (
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// PasswordStore is a bcrypt-hashed password map guarded by its own
// RWMutex, independent of TokenCache's lock.
type PasswordStore struct {
	mu     sync.RWMutex
	hashes map[string][]byte
}

// NewPasswordStore returns an empty store.
func NewPasswordStore() *PasswordStore {
	return &PasswordStore{hashes: make(map[string][]byte)}
}

// SetPassword hashes and stores plaintext for the given account, replacing
// any existing password.
func (p *PasswordStore) SetPassword(account, plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return apierr.Wrap(apierr.CodeInternalError, "hashing password", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.hashes[account] = hash
	return nil
}

// Verify reports whether plaintext matches the stored hash for account.
// A missing account is reported as UNAUTHORIZED, not NOT_FOUND, so
// callers can't distinguish "no such account" from "wrong password".
func (p *PasswordStore) Verify(account, plaintext string) error {
	p.mu.RLock()
	hash, ok := p.hashes[account]
	p.mu.RUnlock()

	if !ok {
		return apierr.New(apierr.CodeUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(plaintext)); err != nil {
		return apierr.New(apierr.CodeUnauthorized, "invalid credentials")
	}
	return nil
}

// Remove deletes account's password, if any.
func (p *PasswordStore) Remove(account string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.hashes, account)
}

// HasAccount reports whether account has a password set.
func (p *PasswordStore) HasAccount(account string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.hashes[account]
	return ok
}
