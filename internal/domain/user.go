// Package domain contains the hub's entities: identifiers and value snapshots
// without transport or lifecycle logic.
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36

	GuestName = "guest"
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUserIDInvalid   = errors.New("user id invalid")
)

type UserID string

// User is the caller identity attached to a connection.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

// NewUser builds the identity supplied by the client token.
// An empty username falls back to GuestName.
func NewUser(id string, username string) (*User, error) {
	if id == "" || len(id) > MaxUserIDLen {
		return nil, ErrUserIDInvalid
	}
	u := &User{ID: UserID(id), Username: GuestName}
	if username == "" {
		return u, nil
	}
	if err := u.SetUsername(username); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) SetUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}
