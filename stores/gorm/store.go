// Package gorm implements the durable UserStore on gorm.io/gorm. The host
// binary opens it over sqlite; any GORM dialect with working unique
// constraints will do.
package gorm

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/rpratheek/cropauth"
)

// AutoMigrate creates or updates the auth tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// Store implements cropauth.UserStore using GORM.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, username string) (*cropauth.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cropauth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.toUser(), nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*cropauth.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cropauth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.toUser(), nil
}

// Create inserts a new account. The primary-key constraint makes the
// uniqueness check and the insert one statement, so concurrent creates for
// the same username cannot both succeed.
func (s *Store) Create(ctx context.Context, user *cropauth.User) error {
	err := s.db.WithContext(ctx).Create(userToModel(user)).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return cropauth.ErrUserExists
	}
	return err
}

func (s *Store) Save(ctx context.Context, user *cropauth.User) error {
	return s.db.WithContext(ctx).Save(userToModel(user)).Error
}
