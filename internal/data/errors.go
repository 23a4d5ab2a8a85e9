package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrProfileIDRequired = errors.New("profile id is required")
	ErrEmailRequired     = errors.New("email is required")
	ErrInvalidRole       = errors.New("invalid role")
	ErrUserIDRequired    = errors.New("user_id is required")
)
