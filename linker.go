package cropauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OAuthLinker reconciles external provider profiles into local accounts.
type OAuthLinker struct {
	users UserStore
}

func NewOAuthLinker(users UserStore) *OAuthLinker {
	return &OAuthLinker{users: users}
}

// CompleteLogin resolves an external identity to a local User. If an account
// with the same email exists it is reused untouched (no duplicate is ever
// created); otherwise a new OAuth-provenance account is created with a
// username derived from the display name. OAuth accounts carry no password
// hash, so they can never pass CredentialStore.Verify.
func (l *OAuthLinker) CompleteLogin(ctx context.Context, ident ExternalIdentity) (*User, error) {
	if ident.Email == "" {
		return nil, fmt.Errorf("external identity has no email: %w", ErrOAuthDenied)
	}

	existing, err := l.users.GetByEmail(ctx, ident.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("lookup by email: %w", err)
	}

	username := usernameFromDisplayName(ident.DisplayName, ident.Email)
	user := &User{
		Username:   username,
		Email:      ident.Email,
		Provenance: ProvenanceOAuth,
		CreatedAt:  time.Now().UTC(),
	}
	err = l.users.Create(ctx, user)
	if errors.Is(err, ErrUserExists) {
		// Derived username collides with an unrelated account; disambiguate
		// with a random suffix rather than ever overwriting.
		user.Username = username + "-" + uuid.NewString()[:8]
		err = l.users.Create(ctx, user)
	}
	if err != nil {
		return nil, fmt.Errorf("create oauth user: %w", err)
	}
	return user, nil
}

// usernameFromDisplayName lowercases the display name and keeps only
// url-friendly characters, falling back to the email local part when the
// display name yields nothing usable.
func usernameFromDisplayName(displayName, email string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(displayName)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('.')
		}
	}
	if b.Len() > 0 {
		return b.String()
	}
	if at := strings.Index(email, "@"); at > 0 {
		return strings.ToLower(email[:at])
	}
	return "user-" + uuid.NewString()[:8]
}
