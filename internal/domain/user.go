package domain

import "strings"

type Profile struct {
	EmailVerified bool `json:"email_verified"`
}

type User struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Profile   Profile `json:"profile"`
}

// FullName falls back to the username when no name parts are set.
func (u User) FullName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full == "" {
		return u.Username
	}
	return full
}

// AuthSession pairs the cached user record with the credential tokens.
// Authentication is derived from access-token presence, never stored.
type AuthSession struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

func (s AuthSession) IsAuthenticated() bool {
	return s.AccessToken != ""
}
