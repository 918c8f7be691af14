package cropauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when a login targets a missing account or an
// account without a password, so both failure paths do the same amount of
// work as a real mismatch.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("cropauth.dummy.credential"), bcrypt.DefaultCost)

// CredentialStore owns password credentials on top of a UserStore: it hashes
// on the way in and compares on the way out, so raw passwords never reach
// persistence.
type CredentialStore struct {
	users UserStore
}

func NewCredentialStore(users UserStore) *CredentialStore {
	return &CredentialStore{users: users}
}

// Create registers a new local account. Returns ErrUserExists if the
// username is taken; the uniqueness check is delegated to the store's atomic
// insert rather than a racy lookup-then-insert.
func (s *CredentialStore) Create(ctx context.Context, username, rawPassword, email string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username is required")
	}
	if rawPassword == "" {
		return errors.New("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		Username:     username,
		Email:        email,
		Provenance:   ProvenanceLocal,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	return s.users.Create(ctx, user)
}

// Verify checks a username/password pair. A missing user, a passwordless
// (OAuth-only) account and a wrong password all yield the same
// ErrInvalidCredentials; bcrypt keeps the comparison constant-time with
// respect to the stored hash.
func (s *CredentialStore) Verify(ctx context.Context, username, rawPassword string) (*User, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(rawPassword))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.HasPassword() {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(rawPassword))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(rawPassword)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// UpdatePassword recomputes and overwrites the hash for the account named by
// identifier, which may be a username or (for the reset flow) an email
// address. Returns ErrUserNotFound if no account matches.
func (s *CredentialStore) UpdatePassword(ctx context.Context, identifier, newPassword string) error {
	if newPassword == "" {
		return errors.New("password is required")
	}

	var (
		user *User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, identifier)
	} else {
		user, err = s.users.Get(ctx, identifier)
	}
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	return s.users.Save(ctx, user)
}

// FindByEmail returns the account with the given email, or ErrUserNotFound.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, email)
}
