// Package model defines the data structures used throughout the application.
package model

import (
	"fmt"
	"time"
)

// UserType is the account role. Only the two values below are valid; the
// store carries a CHECK constraint for the same set.
type UserType string

const (
	UserTypeUser  UserType = "user"
	UserTypeAdmin UserType = "admin"
)

// ParseUserType converts a request value into a UserType. An empty string
// yields the default UserTypeUser.
func ParseUserType(s string) (UserType, error) {
	switch UserType(s) {
	case "":
		return UserTypeUser, nil
	case UserTypeUser, UserTypeAdmin:
		return UserType(s), nil
	default:
		return "", fmt.Errorf("model: unknown user type %q", s)
	}
}

// User represents a registered account.
//
// Email is stored lowercased and is unique across all users. APIKey and
// PreviewURL are nil until the user sets them. PasswordHash never leaves the
// server: it is tagged json:"-" and the handlers respond with PublicUser.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName"  db:"last_name"`
	Mobile       *string   `json:"mobile"    db:"mobile"`
	Type         UserType  `json:"type"      db:"type"`
	APIKey       *string   `json:"apiKey"    db:"api_key"`
	PreviewURL   *string   `json:"previewUrl" db:"preview_url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// PublicUser is the projection returned to clients after signup, login and
// session checks.
type PublicUser struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Type       UserType `json:"type"`
	APIKey     *string  `json:"apiKey"`
	PreviewURL *string  `json:"previewUrl,omitempty"`
}

// Public returns the client-facing projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Type:       u.Type,
		APIKey:     u.APIKey,
		PreviewURL: u.PreviewURL,
	}
}

// Identity is the set of claims carried by the session token. It is trusted
// as-is by private routes and is not re-read from the store.
type Identity struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Type      UserType `json:"type"`
}

// Identity returns the token claims for u.
func (u *User) Identity() Identity {
	return Identity{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Type:      u.Type,
	}
}
