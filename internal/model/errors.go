package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailMissing       = errors.New("google account has no email")
	ErrEmailNotVerified   = errors.New("google email is not verified")

	// Session related errors
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrTokenExpired        = errors.New("token expired")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Product related errors
	ErrProductNotFound = errors.New("product not found")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
