package cropauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

const (
	sessionUserKey  = "username"
	sessionFlashKey = "flash"
)

// SessionManager associates a request context with an authenticated username.
// It is a thin layer over scs: the cookie mechanics, store and expiry belong
// to scs, the rest of the package only depends on this contract. At most one
// username is associated per request context; Start overwrites any prior one.
type SessionManager struct {
	scs *scs.SessionManager
}

func NewSessionManager() *SessionManager {
	sm := scs.New()
	sm.Lifetime = 24 * time.Hour
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	return &SessionManager{scs: sm}
}

// Handler wraps next with session load/save. Every route served by the
// gateway must sit under this wrapper.
func (m *SessionManager) Handler(next http.Handler) http.Handler {
	return m.scs.LoadAndSave(next)
}

// Start associates the request context with username. The session token is
// renewed first so a pre-login session id never survives authentication.
func (m *SessionManager) Start(ctx context.Context, username string) error {
	if err := m.scs.RenewToken(ctx); err != nil {
		return fmt.Errorf("renew session token: %w", err)
	}
	m.scs.Put(ctx, sessionUserKey, username)
	return nil
}

// Current returns the authenticated username for this request context.
func (m *SessionManager) Current(ctx context.Context) (string, bool) {
	username := m.scs.GetString(ctx, sessionUserKey)
	return username, username != ""
}

// End clears the association and destroys the session.
func (m *SessionManager) End(ctx context.Context) error {
	return m.scs.Destroy(ctx)
}

// Flash stores a one-shot notice shown on the next rendered page.
func (m *SessionManager) Flash(ctx context.Context, notice string) {
	m.scs.Put(ctx, sessionFlashKey, notice)
}

// PopFlash returns and clears the pending notice, if any.
func (m *SessionManager) PopFlash(ctx context.Context) string {
	return m.scs.PopString(ctx, sessionFlashKey)
}
