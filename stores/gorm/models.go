package gorm

import (
	"time"

	"github.com/rpratheek/cropauth"
)

// UserModel is the GORM model for accounts. Username is the primary key;
// email carries a unique index so reuse-by-email lookups stay O(1) and two
// OAuth logins can never mint two accounts for one address.
type UserModel struct {
	Username     string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"size:255;uniqueIndex"`
	Provenance   string `gorm:"size:16"`
	PasswordHash []byte
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) toUser() *cropauth.User {
	return &cropauth.User{
		Username:     m.Username,
		Email:        m.Email,
		Provenance:   cropauth.Provenance(m.Provenance),
		PasswordHash: append([]byte(nil), m.PasswordHash...),
		CreatedAt:    m.CreatedAt,
	}
}

func userToModel(u *cropauth.User) *UserModel {
	return &UserModel{
		Username:     u.Username,
		Email:        u.Email,
		Provenance:   string(u.Provenance),
		PasswordHash: append([]byte(nil), u.PasswordHash...),
		CreatedAt:    u.CreatedAt,
	}
}
