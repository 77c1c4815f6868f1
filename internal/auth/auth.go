package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCodeExpiredOrReused maps the token endpoint's 'invalid_grant'
	// response. The pending authorization code must be discarded so the
	// user can restart the login flow.
	ErrCodeExpiredOrReused = errors.New("authorization code has expired or already been used")

	ErrTokenExchange       = errors.New("token exchange failed")
	ErrUserInfoUnavailable = errors.New("unable to retrieve user info")
	ErrIdentityDerivation  = errors.New("unable to derive student id from email")
)

// Profile is the subset of the Google user-info response the dashboard
// displays.
type Profile struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type Identity struct {
	Profile   Profile
	StudentID string
}

// ExtractStudentID returns the local part of an email address e.g.
// 1801@gmail.com yields 1801. An address without an '@' is returned
// unchanged.
func ExtractStudentID(email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("%w (empty email address)", ErrIdentityDerivation)
	}

	id, _, _ := strings.Cut(email, "@")
	if id == "" {
		return "", fmt.Errorf("%w ('%s' has no local part)", ErrIdentityDerivation, email)
	}

	return id, nil
}
