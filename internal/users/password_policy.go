package users

import (
	"errors"
	"regexp"
)

// ErrWeakPassword carries the message returned to clients on signup.
var ErrWeakPassword = errors.New("password must be six characters long and contain at least one number, one special character, one lowercase letter and one uppercase letter")

var (
	passwordCharset = regexp.MustCompile(`^[a-zA-Z0-9!@#$%^&*]{6,}$`)
	// each class must appear at least once
	passwordRequiredClasses = []*regexp.Regexp{
		regexp.MustCompile(`[0-9]`),
		regexp.MustCompile(`[!@#$%^&*]`),
		regexp.MustCompile(`[a-z]`),
		regexp.MustCompile(`[A-Z]`),
	}
)

func ValidatePassword(password string) error {
	if !passwordCharset.MatchString(password) {
		return ErrWeakPassword
	}
	for _, class := range passwordRequiredClasses {
		if !class.MatchString(password) {
			return ErrWeakPassword
		}
	}
	return nil
}
