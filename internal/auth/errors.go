package auth

import "errors"

var (
	// ErrUserNotFound is returned when no account matches a lookup.
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrUsernameExists is returned on registration with a taken username.
	ErrUsernameExists = errors.New("auth: username already exists")

	// ErrEmailExists is returned on registration with a taken email.
	ErrEmailExists = errors.New("auth: email already exists")

	// ErrInvalidCredentials covers unknown accounts and wrong passwords
	// alike, so login failures do not reveal which part was wrong.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid is returned for malformed, tampered or expired
	// access tokens.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrResetCodeInvalid is returned when a password reset code is
	// wrong, expired or was never issued.
	ErrResetCodeInvalid = errors.New("auth: invalid reset code")
)
