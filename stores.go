package cropauth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials is returned for a bad username or a bad password.
	// The two cases are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserExists is returned when creating a user whose username is taken.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned by store lookups that miss.
	ErrUserNotFound = errors.New("user not found")

	// ErrPasswordMismatch is returned when a signup confirmation password
	// does not match the password.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrOAuthDenied is returned when the OAuth provider did not authorize
	// the login. Callers should redirect back into the consent flow.
	ErrOAuthDenied = errors.New("oauth authorization denied")
)

// Provenance describes how an account was established.
type Provenance string

const (
	// ProvenanceLocal accounts were created through signup and carry a
	// password hash.
	ProvenanceLocal Provenance = "local"

	// ProvenanceOAuth accounts were created from an external identity and
	// carry no password hash at all. Password login is therefore impossible
	// for them: there is no marker value a raw password could collide with.
	ProvenanceOAuth Provenance = "oauth"
)

// User is a local account. Username is the primary key and immutable once
// created; PasswordHash is a bcrypt hash and must never be logged or exposed.
type User struct {
	Username     string
	Email        string
	Provenance   Provenance
	PasswordHash []byte
	CreatedAt    time.Time
}

// HasPassword reports whether password login is possible for this account.
func (u *User) HasPassword() bool { return len(u.PasswordHash) > 0 }

// Clone returns a deep copy so stores never hand out aliased state.
func (u *User) Clone() *User {
	out := *u
	out.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &out
}

// UserStore is the durable user persistence contract. Operations are atomic
// per username: two concurrent Creates for the same username must not both
// succeed.
type UserStore interface {
	// Get returns the user with the given username, or ErrUserNotFound.
	Get(ctx context.Context, username string) (*User, error)

	// GetByEmail returns the user with the given email, or ErrUserNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create inserts a new user. Returns ErrUserExists if the username is
	// already present; the uniqueness check and insert are indivisible.
	Create(ctx context.Context, user *User) error

	// Save overwrites an existing user keyed by username.
	Save(ctx context.Context, user *User) error
}

// ExternalIdentity is a profile fetched from the OAuth provider. It is never
// persisted as its own entity; OAuthLinker folds it into a User.
type ExternalIdentity struct {
	DisplayName string
	Email       string
}

// OAuthProvider abstracts the external OAuth2 provider so the gateway and
// tests never talk to the network directly.
type OAuthProvider interface {
	// AuthCodeURL returns the provider consent URL bound to the given state.
	AuthCodeURL(state string) string

	// FetchIdentity exchanges the authorization code and returns the
	// provider profile.
	FetchIdentity(ctx context.Context, code string) (ExternalIdentity, error)
}
