// Package stores provides the in-memory UserStore. It exists as a test
// double and as a zero-dependency fallback for the host binary; durable
// persistence lives in stores/gorm.
package stores

import (
	"context"
	"sync"

	"github.com/rpratheek/cropauth"
)

// Memory is a map-backed UserStore. A single mutex serializes every
// operation, which makes the uniqueness check and insert in Create
// indivisible.
type Memory struct {
	mu      sync.Mutex
	byName  map[string]*cropauth.User
	byEmail map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		byName:  make(map[string]*cropauth.User),
		byEmail: make(map[string]string),
	}
}

func (m *Memory) Get(_ context.Context, username string) (*cropauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byName[username]
	if !ok {
		return nil, cropauth.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (m *Memory) GetByEmail(_ context.Context, email string) (*cropauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	username, ok := m.byEmail[email]
	if !ok {
		return nil, cropauth.ErrUserNotFound
	}
	return m.byName[username].Clone(), nil
}

func (m *Memory) Create(_ context.Context, user *cropauth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[user.Username]; ok {
		return cropauth.ErrUserExists
	}
	m.byName[user.Username] = user.Clone()
	if user.Email != "" {
		m.byEmail[user.Email] = user.Username
	}
	return nil
}

func (m *Memory) Save(_ context.Context, user *cropauth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.byName[user.Username]
	if !ok {
		return cropauth.ErrUserNotFound
	}
	if prev.Email != user.Email {
		delete(m.byEmail, prev.Email)
		if user.Email != "" {
			m.byEmail[user.Email] = user.Username
		}
	}
	m.byName[user.Username] = user.Clone()
	return nil
}
