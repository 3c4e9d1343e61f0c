package users

import (
	"errors"
	"fmt"
	"strings"
)

const MinUsernameLength = 3

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
	ErrInvalidUser   = errors.New("user validation failed")
)

// BlogRef is the projection of an owned blog embedded in user responses.
type BlogRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Blogs        []BlogRef `json:"blogs"`
}

func Validate(u User) error {
	username := strings.TrimSpace(u.Username)
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidUser)
	case len([]rune(username)) < MinUsernameLength:
		return fmt.Errorf("%w: username must be at least %d characters long", ErrInvalidUser, MinUsernameLength)
	case u.PasswordHash == "":
		return fmt.Errorf("%w: password hash is required", ErrInvalidUser)
	}
	return nil
}
